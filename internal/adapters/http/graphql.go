package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/signalmap/internal/core/domain"
	"github.com/samirrijal/signalmap/internal/pkg/geospatial"
)

// buildSchema creates the read-only GraphQL schema wired to our services.
// Field names follow the JSON tags of the returned structs so the default
// resolver can be used.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"session_id": &graphql.Field{Type: graphql.String},
			"latitude":   &graphql.Field{Type: graphql.Float},
			"longitude":  &graphql.Field{Type: graphql.Float},
			"last_seen":  &graphql.Field{Type: graphql.DateTime},
		},
	})

	liveLocationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "LiveLocation",
		Fields: graphql.Fields{
			"found":     &graphql.Field{Type: graphql.Boolean},
			"x":         &graphql.Field{Type: graphql.Int},
			"y":         &graphql.Field{Type: graphql.Int},
			"in_bounds": &graphql.Field{Type: graphql.Boolean},
			"reason":    &graphql.Field{Type: graphql.String},
		},
	})

	extentType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Extent",
		Fields: graphql.Fields{
			"width":  &graphql.Field{Type: graphql.Int},
			"height": &graphql.Field{Type: graphql.Int},
		},
	})

	heatPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "HeatPoint",
		Fields: graphql.Fields{
			"x":     &graphql.Field{Type: graphql.Int},
			"y":     &graphql.Field{Type: graphql.Int},
			"value": &graphql.Field{Type: graphql.Float},
		},
	})

	heatmapPointsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "HeatmapPoints",
		Fields: graphql.Fields{
			"max":    &graphql.Field{Type: graphql.Float},
			"data":   &graphql.Field{Type: graphql.NewList(heatPointType)},
			"extent": &graphql.Field{Type: extentType},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
		},
	})

	floorplanType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Floorplan",
		Fields: graphql.Fields{
			"bounds":      &graphql.Field{Type: boundsType},
			"extent":      &graphql.Field{Type: extentType},
			"orientation": &graphql.Field{Type: graphql.String},
			"span_north_south_m": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					ns, _ := geospatial.SpanMeters(p.Source.(domain.Floorplan).Bounds)
					return ns, nil
				},
			},
			"span_east_west_m": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					_, ew := geospatial.SpanMeters(p.Source.(domain.Floorplan).Bounds)
					return ew, nil
				},
			},
		},
	})

	extentArgs := graphql.FieldConfigArgument{
		"width":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
		"height": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
	}
	extentFrom := func(args map[string]interface{}) domain.RasterExtent {
		w, _ := args["width"].(int)
		h, _ := args["height"].(int)
		return domain.RasterExtent{Width: w, Height: h}
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"sessions": &graphql.Field{
				Type:        graphql.NewList(sessionType),
				Description: "Live sessions ordered by id",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					all := deps.Sessions.List(p.Context)
					views := make([]SessionView, len(all))
					for i, s := range all {
						views[i] = sessionView(s)
					}
					return views, nil
				},
			},
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "A session's latest raw position",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := deps.Sessions.Get(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return sessionView(s), nil
				},
			},
			"liveLocation": &graphql.Field{
				Type:        liveLocationType,
				Description: "A session's latest position mapped onto the floor plan",
				Args: graphql.FieldConfigArgument{
					"id":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"width":  extentArgs["width"],
					"height": extentArgs["height"],
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sessions.LiveLocation(p.Context, p.Args["id"].(string), extentFrom(p.Args))
				},
			},
			"heatmapPoints": &graphql.Field{
				Type:        heatmapPointsType,
				Description: "Measurements mapped onto the floor plan",
				Args:        extentArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					extent, err := deps.Heatmap.Floorplan().ResolveExtent(extentFrom(p.Args))
					if err != nil {
						return nil, err
					}
					points, peak, err := deps.Heatmap.Points(p.Context, extent)
					if err != nil {
						return nil, err
					}
					return PointsResponse{Max: peak, Data: points, Extent: extent}, nil
				},
			},
			"floorplan": &graphql.Field{
				Type:        floorplanType,
				Description: "The configured floor plan",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Heatmap.Floorplan(), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
