package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/signalmap/internal/adapters/http"
	"github.com/samirrijal/signalmap/internal/adapters/memory"
	"github.com/samirrijal/signalmap/internal/core/domain"
	"github.com/samirrijal/signalmap/internal/core/ports"
	"github.com/samirrijal/signalmap/internal/core/usecases"
	"github.com/samirrijal/signalmap/internal/pkg/heatmap"
)

var testFloor = domain.Floorplan{
	Bounds: domain.BoundingBox{
		MinLat: 43.037278,
		MaxLat: 43.037944,
		MinLon: -76.132944,
		MaxLon: -76.132194,
	},
	Extent:      domain.RasterExtent{Width: 375, Height: 300},
	Orientation: domain.OrientationNorthLeft,
}

// ---- Mock repository ----

type mockMeasurementRepo struct {
	mu        sync.Mutex
	locations map[int64]domain.GeoPoint
	speeds    []domain.SpeedResult
	pingErr   error
}

func newMockRepo() *mockMeasurementRepo {
	return &mockMeasurementRepo{locations: map[int64]domain.GeoPoint{}}
}

func (m *mockMeasurementRepo) SaveLocation(ctx context.Context, s domain.LocationSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[s.TestID] = s.Location
	return nil
}

func (m *mockMeasurementRepo) SaveSpeed(ctx context.Context, r domain.SpeedResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speeds = append(m.speeds, r)
	return nil
}

func (m *mockMeasurementRepo) ListRecords(ctx context.Context) ([]domain.MeasurementRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.MeasurementRecord, 0, len(m.speeds))
	for _, s := range m.speeds {
		rec := domain.MeasurementRecord{TestID: s.TestID, Download: s.Download, Upload: s.Upload, PingMs: s.PingMs}
		if loc, ok := m.locations[s.TestID]; ok {
			loc := loc
			rec.Location = &loc
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *mockMeasurementRepo) ImportBatch(ctx context.Context, records []domain.MeasurementRecord) (int, error) {
	return 0, errors.New("not supported")
}

func (m *mockMeasurementRepo) Ping(ctx context.Context) error { return m.pingErr }

func (m *mockMeasurementRepo) seed(testID int64, lat, lon, download float64) {
	m.locations[testID] = domain.GeoPoint{Lat: lat, Lon: lon}
	m.speeds = append(m.speeds, domain.SpeedResult{TestID: testID, Download: download})
}

// stubRenderer returns a fixed document so handler tests do not depend on
// the plotting libraries.
type stubRenderer struct{ contentType string }

func (r stubRenderer) Render(ctx context.Context, f domain.ScalarField, pts []domain.HeatPoint) ([]byte, error) {
	return []byte("stub:" + r.contentType), nil
}

func (r stubRenderer) ContentType() string { return r.contentType }

// ---- Test harness ----

type testEnv struct {
	app  *fiber.App
	repo *mockMeasurementRepo
}

func setupApp(t *testing.T) *testEnv {
	t.Helper()
	return setupAppWithConfig(t, fiber.Config{Immutable: true})
}

func setupAppWithConfig(t *testing.T, cfg fiber.Config) *testEnv {
	t.Helper()
	repo := newMockRepo()

	renderers := map[string]ports.FieldRenderer{
		"png":  stubRenderer{"image/png"},
		"html": stubRenderer{"text/html; charset=utf-8"},
	}
	hm := usecases.NewHeatmapService(repo, nil, renderers, testFloor, heatmap.DefaultOptions(), 60)

	deps := &handler.Dependencies{
		Sessions:     usecases.NewSessionService(memory.NewSessionStore(), nil, testFloor),
		Measurements: usecases.NewMeasurementService(memory.NewTestRegistry(nil), repo, nil, hm),
		Heatmap:      hm,
		DB:           repo,
		Payload:      bytes.Repeat([]byte{0xAB}, 1024),
	}

	app := fiber.New(cfg)
	if err := handler.SetupRoutes(app, deps); err != nil {
		t.Fatalf("setup routes: %v", err)
	}
	return &testEnv{app: app, repo: repo}
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func decode(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %q: %v", string(data), err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, body []byte, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, string(body))
	}
}

func expectErrorCode(t *testing.T, body []byte, code string) {
	t.Helper()
	var apiErr handler.APIError
	decode(t, body, &apiErr)
	if apiErr.Code != code {
		t.Errorf("expected error code %q, got %q (%s)", code, apiErr.Code, apiErr.Message)
	}
	if apiErr.RequestID == "" {
		t.Error("expected request_id in error body")
	}
}

// ---- Sessions ----

func TestReportPositionAndGet(t *testing.T) {
	env := setupApp(t)

	resp, body := env.do(t, "POST", "/v1/sessions/abc/position", map[string]interface{}{
		"latitude":  43.0376,
		"longitude": "-76.1325",
	})
	expectStatus(t, resp, body, 200)

	var sess handler.SessionView
	decode(t, body, &sess)
	if sess.SessionID != "abc" || sess.Latitude != 43.0376 || sess.Longitude != -76.1325 {
		t.Errorf("unexpected session: %+v", sess)
	}

	resp, body = env.do(t, "GET", "/v1/sessions/abc", nil)
	expectStatus(t, resp, body, 200)
	decode(t, body, &sess)
	if sess.LastSeen.IsZero() {
		t.Error("expected last_seen to be set")
	}
}

func TestReportPositionRejectsBadCoordinates(t *testing.T) {
	env := setupApp(t)

	resp, body := env.do(t, "POST", "/v1/sessions/abc/position", map[string]interface{}{
		"latitude":  "north",
		"longitude": -76.1325,
	})
	expectStatus(t, resp, body, 400)
	expectErrorCode(t, body, "bad_request")

	resp, body = env.do(t, "POST", "/v1/sessions/abc/position", map[string]interface{}{"latitude": 43.0376})
	expectStatus(t, resp, body, 400)
}

func TestGetSessionNotFound(t *testing.T) {
	env := setupApp(t)

	resp, body := env.do(t, "GET", "/v1/sessions/ghost", nil)
	expectStatus(t, resp, body, 404)
	expectErrorCode(t, body, "session_not_found")
}

func TestListSessionsPaginated(t *testing.T) {
	env := setupApp(t)
	for _, id := range []string{"b", "a", "c"} {
		resp, body := env.do(t, "POST", "/v1/sessions/"+id+"/position", map[string]interface{}{"latitude": 43.0376, "longitude": -76.1325})
		expectStatus(t, resp, body, 200)
	}

	resp, body := env.do(t, "GET", "/v1/sessions?offset=1&limit=1", nil)
	expectStatus(t, resp, body, 200)

	var page struct {
		Data       []handler.SessionView `json:"data"`
		Pagination handler.Pagination    `json:"pagination"`
	}
	decode(t, body, &page)
	if page.Pagination.Total != 3 || len(page.Data) != 1 || page.Data[0].SessionID != "b" {
		t.Errorf("unexpected page: %+v", page)
	}
	link := resp.Header.Get("Link")
	if !strings.Contains(link, `rel="next"`) || !strings.Contains(link, `rel="prev"`) {
		t.Errorf("expected prev and next links, got %q", link)
	}
}

// Session ids come from request paths. The stores must keep their own copy
// even when Fiber reuses the request buffers.
func TestSessionIDsSurviveBufferReuse(t *testing.T) {
	for name, cfg := range map[string]fiber.Config{
		"immutable": {Immutable: true},
		"default":   {},
	} {
		t.Run(name, func(t *testing.T) {
			env := setupAppWithConfig(t, cfg)
			for _, id := range []string{"aa", "bb"} {
				resp, body := env.do(t, "POST", "/v1/sessions/"+id+"/position", map[string]interface{}{"latitude": 43.0376, "longitude": -76.1325})
				expectStatus(t, resp, body, 200)
			}

			resp, body := env.do(t, "GET", "/v1/sessions", nil)
			expectStatus(t, resp, body, 200)
			var page struct {
				Data []handler.SessionView `json:"data"`
			}
			decode(t, body, &page)
			var ids []string
			for _, s := range page.Data {
				ids = append(ids, s.SessionID)
			}
			if strings.Join(ids, ",") != "aa,bb" {
				t.Fatalf("expected sessions aa,bb, got %v", ids)
			}

			issue := func(id string) int64 {
				resp, body := env.do(t, "POST", "/v1/sessions/"+id+"/tests", nil)
				expectStatus(t, resp, body, 201)
				var issued struct {
					TestID int64 `json:"test_id"`
				}
				decode(t, body, &issued)
				return issued.TestID
			}
			first := issue("s1")
			issue("s2")

			resp, body = env.do(t, "POST", "/v1/sessions/s1/measurements", map[string]interface{}{"download": 42})
			expectStatus(t, resp, body, 201)
			var stored struct {
				TestID int64 `json:"test_id"`
			}
			decode(t, body, &stored)
			if stored.TestID != first {
				t.Errorf("s1 measurement stored under %d, want %d", stored.TestID, first)
			}
		})
	}
}

func TestLiveLocation(t *testing.T) {
	env := setupApp(t)
	resp, body := env.do(t, "POST", "/v1/sessions/abc/position", map[string]interface{}{
		"latitude":  testFloor.Bounds.MaxLat,
		"longitude": testFloor.Bounds.MinLon,
	})
	expectStatus(t, resp, body, 200)

	resp, body = env.do(t, "GET", "/v1/sessions/abc/live?width=375&height=300", nil)
	expectStatus(t, resp, body, 200)

	var loc domain.LiveLocation
	decode(t, body, &loc)
	if !loc.Found || !loc.InBounds || loc.X != 0 || loc.Y != 0 {
		t.Errorf("expected found in-bounds (0,0), got %+v", loc)
	}
	if !strings.Contains(string(body), `"x":0`) {
		t.Errorf("expected x to be present in %s", string(body))
	}
}

func TestLiveLocationUnknownSession(t *testing.T) {
	env := setupApp(t)

	resp, body := env.do(t, "GET", "/v1/sessions/ghost/live", nil)
	expectStatus(t, resp, body, 200)

	var loc domain.LiveLocation
	decode(t, body, &loc)
	if loc.Found || loc.Reason == "" {
		t.Errorf("expected found=false with a reason, got %+v", loc)
	}
}

func TestLiveLocationInvalidExtent(t *testing.T) {
	env := setupApp(t)

	for _, q := range []string{"width=abc", "width=0&height=10", "width=5000&height=10"} {
		resp, body := env.do(t, "GET", "/v1/sessions/abc/live?"+q, nil)
		expectStatus(t, resp, body, 400)
	}
}

// ---- Measurements ----

func TestMeasurementFlow(t *testing.T) {
	env := setupApp(t)

	resp, body := env.do(t, "POST", "/v1/sessions/abc/measurements", map[string]interface{}{"download": 10})
	expectStatus(t, resp, body, 409)
	expectErrorCode(t, body, "no_active_test")

	resp, body = env.do(t, "POST", "/v1/sessions/abc/tests", nil)
	expectStatus(t, resp, body, 201)
	var issued struct {
		TestID int64 `json:"test_id"`
	}
	decode(t, body, &issued)
	if issued.TestID <= 0 {
		t.Fatalf("expected positive test id, got %d", issued.TestID)
	}

	resp, body = env.do(t, "POST", "/v1/sessions/abc/measurements", map[string]interface{}{
		"dlStatus":   "Fail",
		"ulStatus":   "12.5",
		"pingStatus": 20,
	})
	expectStatus(t, resp, body, 201)
	var stored struct {
		TestID int64 `json:"test_id"`
	}
	decode(t, body, &stored)
	if stored.TestID != issued.TestID {
		t.Errorf("expected test id %d, got %d", issued.TestID, stored.TestID)
	}

	if len(env.repo.speeds) != 1 {
		t.Fatalf("expected one stored result, got %d", len(env.repo.speeds))
	}
	got := env.repo.speeds[0]
	if got.Download != 0 || got.Upload != 12.5 || got.PingMs != 20 {
		t.Errorf("unexpected stored result: %+v", got)
	}
}

func TestSaveTestLocation(t *testing.T) {
	env := setupApp(t)

	resp, body := env.do(t, "POST", "/v1/tests/abc/location", map[string]interface{}{"latitude": 43.0376, "longitude": -76.1325})
	expectStatus(t, resp, body, 400)

	resp, body = env.do(t, "POST", "/v1/tests/123456/location", map[string]interface{}{"latitude": 43.0376, "longitude": -76.1325})
	expectStatus(t, resp, body, 201)

	if _, ok := env.repo.locations[123456]; !ok {
		t.Error("expected location to be stored")
	}
}

// ---- Heatmap ----

func seedCorners(repo *mockMeasurementRepo) {
	b := testFloor.Bounds
	repo.seed(1, b.MaxLat-0.0001, b.MinLon+0.0001, 80)
	repo.seed(2, b.MaxLat-0.0001, b.MaxLon-0.0001, 40)
	repo.seed(3, b.MinLat+0.0001, b.MinLon+0.0001, 20)
	repo.seed(4, b.MinLat+0.0001, b.MaxLon-0.0001, 60)
}

func TestHeatmapPoints(t *testing.T) {
	env := setupApp(t)

	resp, body := env.do(t, "GET", "/v1/heatmap/points", nil)
	expectStatus(t, resp, body, 200)
	var empty handler.PointsResponse
	decode(t, body, &empty)
	if len(empty.Data) != 0 || empty.Max != 1 || empty.Extent != testFloor.Extent {
		t.Errorf("unexpected empty response: %+v", empty)
	}

	seedCorners(env.repo)
	resp, body = env.do(t, "GET", "/v1/heatmap/points?width=100&height=80", nil)
	expectStatus(t, resp, body, 200)
	var pts handler.PointsResponse
	decode(t, body, &pts)
	if len(pts.Data) != 4 || pts.Max != 80 {
		t.Errorf("expected 4 points with max 80, got %d points max %v", len(pts.Data), pts.Max)
	}
	for _, p := range pts.Data {
		if p.X < 0 || p.X >= 100 || p.Y < 0 || p.Y >= 80 {
			t.Errorf("point outside raster: %+v", p)
		}
	}
}

func TestHeatmapFieldNotReady(t *testing.T) {
	env := setupApp(t)

	resp, body := env.do(t, "GET", "/v1/heatmap/field?width=40&height=30", nil)
	expectStatus(t, resp, body, 200)
	var fr handler.FieldResponse
	decode(t, body, &fr)
	if fr.Ready || fr.Reason == "" || fr.Field != nil {
		t.Errorf("expected not-ready response, got %+v", fr)
	}
}

func TestHeatmapField(t *testing.T) {
	env := setupApp(t)
	seedCorners(env.repo)

	resp, body := env.do(t, "GET", "/v1/heatmap/field?width=40&height=30", nil)
	expectStatus(t, resp, body, 200)
	var fr handler.FieldResponse
	decode(t, body, &fr)
	if !fr.Ready || fr.Field == nil {
		t.Fatalf("expected ready field, got %s", string(body))
	}
	if fr.Field.Width != 40 || fr.Field.Height != 30 || len(fr.Field.Values) != 1200 {
		t.Errorf("unexpected field dims %dx%d (%d values)", fr.Field.Width, fr.Field.Height, len(fr.Field.Values))
	}
	if fr.Field.Points != 4 || fr.Field.Max != 80 {
		t.Errorf("unexpected field summary: points=%d max=%v", fr.Field.Points, fr.Field.Max)
	}
}

func TestHeatmapFieldRejectsOversizedExtent(t *testing.T) {
	env := setupApp(t)
	seedCorners(env.repo)

	for _, q := range []string{"width=4096&height=10", "width=10&height=2049"} {
		resp, body := env.do(t, "GET", "/v1/heatmap/field?"+q, nil)
		expectStatus(t, resp, body, 400)
	}
}

func TestHeatmapRender(t *testing.T) {
	env := setupApp(t)

	resp, body := env.do(t, "GET", "/v1/heatmap.png?width=40&height=30", nil)
	expectStatus(t, resp, body, 204)

	seedCorners(env.repo)
	resp, body = env.do(t, "GET", "/v1/heatmap.png?width=40&height=30", nil)
	expectStatus(t, resp, body, 200)
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}
	if string(body) != "stub:image/png" {
		t.Errorf("unexpected body %q", string(body))
	}

	resp, body = env.do(t, "GET", "/v1/heatmap.html?width=40&height=30", nil)
	expectStatus(t, resp, body, 200)
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("expected html content type, got %q", resp.Header.Get("Content-Type"))
	}
}

func TestHeatmapSnapshotMissing(t *testing.T) {
	env := setupApp(t)

	resp, body := env.do(t, "GET", "/v1/heatmap/snapshot.png", nil)
	expectStatus(t, resp, body, 404)
	expectErrorCode(t, body, "snapshot_not_found")
}

func TestFloorplanETag(t *testing.T) {
	env := setupApp(t)

	resp, body := env.do(t, "GET", "/v1/floorplan", nil)
	expectStatus(t, resp, body, 200)
	var fp handler.FloorplanResponse
	decode(t, body, &fp)
	if fp.Orientation != domain.OrientationNorthLeft || fp.Extent != testFloor.Extent {
		t.Errorf("unexpected floorplan: %+v", fp)
	}
	if fp.SpanMeters.NorthSouth < 70 || fp.SpanMeters.NorthSouth > 78 {
		t.Errorf("unexpected north-south span %v", fp.SpanMeters.NorthSouth)
	}

	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}
	resp, body = env.do(t, "GET", "/v1/floorplan", nil, "If-None-Match", etag)
	expectStatus(t, resp, body, 304)
}

// ---- Speed-test backend ----

func TestBackendEmpty(t *testing.T) {
	env := setupApp(t)

	resp, body := env.do(t, "POST", "/backend/empty?cors", nil)
	expectStatus(t, resp, body, 200)
	if len(body) != 0 {
		t.Errorf("expected empty body, got %d bytes", len(body))
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header")
	}
	if !strings.Contains(resp.Header.Get("Cache-Control"), "no-store") {
		t.Errorf("expected no-store, got %q", resp.Header.Get("Cache-Control"))
	}
}

func TestBackendGarbage(t *testing.T) {
	env := setupApp(t)

	cases := map[string]int{
		"/backend/garbage":            4 * 1024,
		"/backend/garbage?ckSize=3":   3 * 1024,
		"/backend/garbage?ckSize=0":   1 * 1024,
		"/backend/garbage?ckSize=abc": 4 * 1024,
	}
	for target, want := range cases {
		resp, body := env.do(t, "GET", target, nil)
		expectStatus(t, resp, body, 200)
		if len(body) != want {
			t.Errorf("%s: expected %d bytes, got %d", target, want, len(body))
		}
		if resp.Header.Get("Content-Type") != "application/octet-stream" {
			t.Errorf("%s: unexpected content type %q", target, resp.Header.Get("Content-Type"))
		}
	}
}

func TestBackendGetIP(t *testing.T) {
	env := setupApp(t)

	resp, body := env.do(t, "GET", "/backend/getIP", nil, "X-Forwarded-For", "::ffff:10.1.2.3, 172.16.0.1")
	expectStatus(t, resp, body, 200)

	var ip handler.IPResponse
	decode(t, body, &ip)
	if ip.YourIP != "10.1.2.3" || ip.ProcessedString != "10.1.2.3" || ip.ISP != nil {
		t.Errorf("unexpected ip response: %+v", ip)
	}

	resp, body = env.do(t, "GET", "/backend/getIP?isp", nil, "X-Real-Ip", "127.0.0.1")
	expectStatus(t, resp, body, 200)
	decode(t, body, &ip)
	if ip.ISP == nil || *ip.ISP != "localhost IPv4 access" {
		t.Errorf("expected localhost ISP, got %+v", ip)
	}
}

func TestTelemetry(t *testing.T) {
	env := setupApp(t)

	resp, body := env.do(t, "POST", "/results/telemetry", map[string]interface{}{
		"download": "10.5", "upload": 5, "ping": 12, "jitter": 1.5,
	})
	expectStatus(t, resp, body, 200)

	resp, body = env.do(t, "POST", "/results/telemetry", map[string]interface{}{
		"download": "fast", "upload": 5, "ping": 12, "jitter": 1.5,
	})
	expectStatus(t, resp, body, 400)

	resp, body = env.do(t, "POST", "/results/telemetry", map[string]interface{}{"download": 1})
	expectStatus(t, resp, body, 400)
}

// ---- Legacy aliases ----

func TestLegacyFlow(t *testing.T) {
	env := setupApp(t)

	resp, body := env.do(t, "GET", "/generate_unique_id", nil)
	expectStatus(t, resp, body, 400)

	resp, body = env.do(t, "GET", "/generate_unique_id?session_id=s1", nil)
	expectStatus(t, resp, body, 200)
	if resp.Header.Get("Deprecation") != "true" || resp.Header.Get("Sunset") == "" {
		t.Error("expected deprecation headers on legacy alias")
	}
	if !strings.Contains(resp.Header.Get("Link"), "successor-version") {
		t.Errorf("expected successor link, got %q", resp.Header.Get("Link"))
	}
	var gen struct {
		ID int64 `json:"id"`
	}
	decode(t, body, &gen)

	resp, body = env.do(t, "POST", "/save_location", map[string]interface{}{
		"latitude": 43.0376, "longitude": -76.1325, "session_id": "s1", "id": gen.ID,
	})
	expectStatus(t, resp, body, 200)

	resp, body = env.do(t, "POST", "/save_user_location", map[string]interface{}{
		"latitude": "43.0376", "longitude": "-76.1325", "session_id": "s1",
	})
	expectStatus(t, resp, body, 200)

	resp, body = env.do(t, "POST", "/submit-speed", map[string]interface{}{
		"session_id": "s1", "dlStatus": "55.5", "ulStatus": "Fail", "pingStatus": "12",
	})
	expectStatus(t, resp, body, 200)
	var saved struct {
		ID int64 `json:"id"`
	}
	decode(t, body, &saved)
	if saved.ID != gen.ID {
		t.Errorf("expected id %d, got %d", gen.ID, saved.ID)
	}

	resp, body = env.do(t, "GET", "/heatmap-data", nil)
	expectStatus(t, resp, body, 200)
	var hm struct {
		Max  float64            `json:"max"`
		Data []domain.HeatPoint `json:"data"`
	}
	decode(t, body, &hm)
	if len(hm.Data) != 1 || hm.Max != 55.5 {
		t.Errorf("unexpected heatmap data: %+v", hm)
	}

	resp, body = env.do(t, "GET", "/get_all_sessions", nil)
	expectStatus(t, resp, body, 200)
	var all map[string]string
	decode(t, body, &all)
	if !strings.HasSuffix(all["s1"], " UTC") {
		t.Errorf("expected formatted last-seen for s1, got %v", all)
	}

	resp, body = env.do(t, "GET", "/get_location/s1", nil)
	expectStatus(t, resp, body, 200)

	resp, body = env.do(t, "GET", "/get_location/ghost", nil)
	expectStatus(t, resp, body, 404)

	resp, body = env.do(t, "GET", "/get-live-location/s1", nil)
	expectStatus(t, resp, body, 200)
	var loc domain.LiveLocation
	decode(t, body, &loc)
	if !loc.Found {
		t.Errorf("expected live location for s1, got %+v", loc)
	}
}

// ---- GraphQL & ops ----

func TestGraphQLSessions(t *testing.T) {
	env := setupApp(t)
	resp, body := env.do(t, "POST", "/v1/sessions/abc/position", map[string]interface{}{"latitude": 43.0376, "longitude": -76.1325})
	expectStatus(t, resp, body, 200)

	resp, body = env.do(t, "POST", "/graphql", map[string]interface{}{
		"query": `{ sessions { session_id latitude } liveLocation(id: "abc") { found in_bounds } floorplan { orientation } }`,
	})
	expectStatus(t, resp, body, 200)

	var result struct {
		Data struct {
			Sessions []struct {
				SessionID string  `json:"session_id"`
				Latitude  float64 `json:"latitude"`
			} `json:"sessions"`
			LiveLocation struct {
				Found    bool `json:"found"`
				InBounds bool `json:"in_bounds"`
			} `json:"liveLocation"`
			Floorplan struct {
				Orientation string `json:"orientation"`
			} `json:"floorplan"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	decode(t, body, &result)
	if len(result.Errors) > 0 {
		t.Fatalf("graphql errors: %v", result.Errors)
	}
	if len(result.Data.Sessions) != 1 || result.Data.Sessions[0].SessionID != "abc" {
		t.Errorf("unexpected sessions: %+v", result.Data.Sessions)
	}
	if !result.Data.LiveLocation.Found || !result.Data.LiveLocation.InBounds {
		t.Errorf("unexpected live location: %+v", result.Data.LiveLocation)
	}
	if result.Data.Floorplan.Orientation != "north-left" {
		t.Errorf("unexpected orientation %q", result.Data.Floorplan.Orientation)
	}
}

func TestHealthAndReady(t *testing.T) {
	env := setupApp(t)

	resp, body := env.do(t, "GET", "/v1/health", nil)
	expectStatus(t, resp, body, 200)

	resp, body = env.do(t, "GET", "/v1/ready", nil)
	expectStatus(t, resp, body, 200)

	env.repo.pingErr = errors.New("connection refused")
	resp, body = env.do(t, "GET", "/v1/ready", nil)
	expectStatus(t, resp, body, 503)
}

func TestDocs(t *testing.T) {
	env := setupApp(t)

	resp, body := env.do(t, "GET", "/docs/openapi.yaml", nil)
	expectStatus(t, resp, body, 200)
	if !strings.HasPrefix(string(body), "openapi: 3") {
		t.Errorf("unexpected openapi document prefix: %q", string(body[:20]))
	}

	resp, body = env.do(t, "GET", "/docs/openapi.json", nil)
	expectStatus(t, resp, body, 200)
	var doc struct {
		OpenAPI string         `json:"openapi"`
		Paths   map[string]any `json:"paths"`
	}
	decode(t, body, &doc)
	if !strings.HasPrefix(doc.OpenAPI, "3.") || doc.Paths["/v1/heatmap/points"] == nil {
		t.Errorf("unexpected openapi json: openapi=%q paths=%d", doc.OpenAPI, len(doc.Paths))
	}
}
