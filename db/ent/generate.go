// Command generate regenerates the ent client for the invoice store from the
// schemas under db/ent/schema. Output lands in db/gen/invoicedb, which is not
// checked in.
package main

import (
	"log"

	"entgo.io/ent/entc"
	"entgo.io/ent/entc/gen"
)

func main() {
	cfg := &gen.Config{
		Target:  "db/gen/invoicedb",
		Package: "github.com/docuflow/invoice-extractor/db/gen/invoicedb",
		Schema:  "github.com/docuflow/invoice-extractor/db/ent/schema",
	}
	if err := entc.Generate("./db/ent/schema", cfg, entc.FeatureNames("sql/upsert")); err != nil {
		log.Fatalf("ent codegen: %v", err)
	}
}
