package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"

	"github.com/google/uuid"
)

type Extraction struct{ ent.Schema }

func (Extraction) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "extractions"},
	}
}

func (Extraction) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable().
			StorageKey("id"),
		field.UUID("invoice_id", uuid.UUID{}).Optional().Nillable(),
		field.String("source_file_name").Default(""),
		field.Time("started_at").Immutable(),
		field.Enum("status").
			Values("PROCESSING", "COMPLETED", "FAILED", "PARTIAL"),
		field.Float("ocr_confidence").Optional().Nillable().
			Min(0).Max(1),
		field.Float("llm_confidence").Optional().Nillable().
			Min(0).Max(1),
		field.String("engine_name").Optional().Nillable(),
		field.Text("ocr_text").Optional().Nillable(),
		field.JSON("raw_payload", map[string]any{}).Optional().
			SchemaType(map[string]string{dialect.Postgres: "jsonb"}),
		field.String("error_message").Optional().Nillable(),
		field.Time("created_at").Default(time.Now),
	}
}

func (Extraction) Edges() []ent.Edge {
	return []ent.Edge{
		// MANY extractions -> ONE invoice (FK: extractions.invoice_id)
		edge.From("invoice", Invoice.Type).
			Ref("extractions").
			Field("invoice_id").
			Unique(),
	}
}
