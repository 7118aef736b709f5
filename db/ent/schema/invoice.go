package schema

import (
	"regexp"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"

	"github.com/google/uuid"
)

var reCurrency = regexp.MustCompile(`^[A-Z]{3}$`)

type Invoice struct{ ent.Schema }

func (Invoice) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "invoices"},
	}
}

func (Invoice) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable().
			StorageKey("id"),
		field.String("invoice_number").NotEmpty(),
		field.Float("amount").
			Default(0).
			SchemaType(map[string]string{dialect.Postgres: "numeric(14,2)"}),
		field.String("party_name").NotEmpty(),
		field.String("party_address").Default(""),
		field.String("currency_code").NotEmpty().MinLen(3).MaxLen(3).
			Match(reCurrency).
			SchemaType(map[string]string{dialect.Postgres: "char(3)"}),
		field.Enum("status").
			Values("PROCESSING", "EXTRACTED", "EXTRACTION_FAILED", "PENDING"),
		field.String("source_file_name").Default(""),
		field.Time("created_at").Default(time.Now),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
		// soft delete flag; reads must exclude rows with deleted_at set
		field.Time("deleted_at").Optional().Nillable(),
	}
}

func (Invoice) Edges() []ent.Edge {
	return []ent.Edge{
		// ONE invoice -> MANY extraction attempts
		edge.To("extractions", Extraction.Type),
	}
}
