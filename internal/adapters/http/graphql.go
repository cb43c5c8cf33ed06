package http

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
)

// buildSchema creates the read-only GraphQL schema over sessions. Mutation
// stays on the REST surface; the query surface exists for dashboards that
// want one round trip.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	positionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Position",
		Fields: graphql.Fields{
			"lon": &graphql.Field{Type: graphql.Float},
			"lat": &graphql.Field{Type: graphql.Float},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"id":              &graphql.Field{Type: graphql.String},
			"flow":            &graphql.Field{Type: graphql.String},
			"mode":            &graphql.Field{Type: graphql.String},
			"start":           &graphql.Field{Type: positionType},
			"exclusion_zones": &graphql.Field{Type: graphql.Int},
			"safe_zones":      &graphql.Field{Type: graphql.Int},
			"requests":        &graphql.Field{Type: graphql.Int},
			"in_flight":       &graphql.Field{Type: graphql.Boolean},
		},
	})

	requestType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PathRequest",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.Int},
			"start":         &graphql.Field{Type: positionType},
			"state":         &graphql.Field{Type: graphql.String},
			"path":          &graphql.Field{Type: graphql.NewList(positionType)},
			"failure_cause": &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "Headline state of one session",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					sum, err := deps.Sessions.Summary(p.Context, id)
					if err != nil {
						return nil, err
					}
					m := map[string]interface{}{
						"id":              sum.ID,
						"flow":            sum.Flow,
						"mode":            sum.Mode,
						"exclusion_zones": sum.Exclusion,
						"safe_zones":      sum.Safe,
						"requests":        sum.Requests,
						"in_flight":       sum.InFlight,
					}
					if sum.Start != nil {
						m["start"] = map[string]interface{}{"lon": sum.Start.Lon, "lat": sum.Start.Lat}
					}
					return m, nil
				},
			},
			"requests": &graphql.Field{
				Type:        graphql.NewList(requestType),
				Description: "Path requests for a session, dispatch order",
				Args: graphql.FieldConfigArgument{
					"session_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					sessionID := p.Args["session_id"].(string)
					reqs, err := deps.Sessions.Requests(p.Context, sessionID)
					if err != nil {
						return nil, err
					}
					var result []map[string]interface{}
					for _, r := range reqs {
						m := map[string]interface{}{
							"id":            int(r.ID),
							"start":         map[string]interface{}{"lon": r.Start.Lon, "lat": r.Start.Lat},
							"state":         string(r.State),
							"failure_cause": r.FailureCause,
						}
						var path []map[string]interface{}
						for _, v := range r.Path {
							path = append(path, map[string]interface{}{"lon": v.Lon, "lat": v.Lat})
						}
						m["path"] = path
						result = append(result, m)
					}
					return result, nil
				},
			},
			"layers": &graphql.Field{
				Type:        graphql.String,
				Description: "GeoJSON layer projection for a session, as a JSON string",
				Args: graphql.FieldConfigArgument{
					"session_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					sessionID := p.Args["session_id"].(string)
					ls, err := deps.Sessions.Layers(p.Context, sessionID)
					if err != nil {
						return nil, err
					}
					data, err := json.Marshal(ls)
					if err != nil {
						return nil, err
					}
					return string(data), nil
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
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
