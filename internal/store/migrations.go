package store

type schemaStep struct {
	name string
	ddl  string
}

// schema lists the DDL steps in order. Step i brings the database to
// user_version i+1; append new steps, never edit shipped ones.
var schema = []schemaStep{
	{
		name: "credentials",
		ddl: `
			CREATE TABLE credentials (
				id          INTEGER PRIMARY KEY CHECK (id = 1),
				credential  TEXT NOT NULL,
				sealed      INTEGER NOT NULL DEFAULT 0,
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
}
