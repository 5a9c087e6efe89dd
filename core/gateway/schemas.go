package gateway

// goalSchemaID is the schema declared on the goals table.
const goalSchemaID = "http://wayfarer.pointb.tech/schemas/goal.json"

// defaultSchemas are compiled into every gateway, in addition to whatever
// the Builder supplies. No field is required, the same schema covers full
// insert payloads and partial update payloads; it pins the value types.
var defaultSchemas = []string{`
{ "$id" : "` + goalSchemaID + `",
  "type" : "object",
  "properties" : {
    "title" : { "type" : "string" },
    "description" : { "type" : "string" },
    "progress" : { "type" : "integer", "minimum" : 0, "maximum" : 100 },
    "target_date" : { "type" : "string" },
    "completed" : { "type" : "boolean" },
    "user_id" : { "type" : "string" }
  }
}`}
