// Package seed generates demo diagrams with plausible names and types.
// Output is fully determined by Options.Seed.
package seed

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/jaswdr/faker"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/erdsync/internal/diagram"
)

// Options controls the generated diagram.
type Options struct {
	Seed         int64
	Tables       int
	Views        int
	Areas        int
	Notes        int
	DatabaseType string
	Name         string
}

// DefaultOptions is a small demo diagram.
func DefaultOptions() Options {
	return Options{Seed: 1, Tables: 8, Views: 2, Areas: 2, Notes: 1, DatabaseType: "postgresql"}
}

// Layout constants.
const (
	columns   = 4
	columnGap = 300.0
	rowGap    = 420.0
	areaPad   = 40.0
)

var columnTypes = []string{"varchar(255)", "text", "integer", "numeric(10,2)", "boolean", "timestamp", "uuid", "jsonb"}

// Generate builds a diagram. Tables are laid out on a grid; area i
// encloses grid row i, so the tables of that row get it as parent.
func Generate(opts Options) diagram.Diagram {
	f := faker.NewWithSeed(rand.NewSource(opts.Seed))
	g := &generator{opts: opts, f: f}

	name := opts.Name
	if name == "" {
		name = cases.Title(language.English).String(f.Company().Name())
	}
	d := diagram.Diagram{
		ID:           g.id("diagram", 0),
		Name:         name,
		DatabaseType: opts.DatabaseType,
	}

	used := map[string]bool{}
	for i := 0; i < opts.Tables; i++ {
		d.Tables = append(d.Tables, g.table(i, uniqueName(f, used), false))
	}
	for i := 0; i < opts.Views && opts.Tables > 0; i++ {
		idx := opts.Tables + i
		view := g.table(idx, "v_"+uniqueName(f, used), true)
		d.Tables = append(d.Tables, view)
		base := d.Tables[f.IntBetween(0, opts.Tables-1)]
		d.Dependencies = append(d.Dependencies, diagram.Dependency{
			ID:               g.id("dependency", i),
			TableID:          base.ID,
			DependentTableID: view.ID,
		})
	}

	// Each table after the first references an earlier one.
	for i := 1; i < opts.Tables; i++ {
		src := d.Tables[i]
		tgt := d.Tables[f.IntBetween(0, i-1)]
		fk := diagram.Field{
			ID:   g.id("fk", i),
			Name: singular(tgt.Name) + "_id",
			Type: "bigint",
		}
		d.Tables[i].Fields = append(d.Tables[i].Fields, fk)
		d.Relationships = append(d.Relationships, diagram.Relationship{
			ID:                g.id("relationship", i),
			Name:              fmt.Sprintf("%s_%s_fk", src.Name, fk.Name),
			SourceTableID:     src.ID,
			SourceFieldID:     fk.ID,
			TargetTableID:     tgt.ID,
			TargetFieldID:     tgt.Fields[0].ID,
			SourceCardinality: diagram.CardinalityMany,
			TargetCardinality: diagram.CardinalityOne,
		})
	}

	rows := (len(d.Tables) + columns - 1) / columns
	for i := 0; i < opts.Areas && i < rows; i++ {
		d.Areas = append(d.Areas, diagram.Area{
			ID:     g.id("area", i),
			Name:   f.Lorem().Word(),
			X:      -areaPad,
			Y:      float64(i)*rowGap - areaPad,
			Width:  columns*columnGap + areaPad,
			Height: rowGap - areaPad,
			Color:  f.Color().Hex(),
		})
	}
	for i := range d.Tables {
		d.Tables[i].ParentAreaID = diagram.ContainingArea(d.Tables[i].Bounds(), d.Areas)
	}

	for i := 0; i < opts.Notes; i++ {
		d.Notes = append(d.Notes, diagram.Note{
			ID:      g.id("note", i),
			Content: f.Lorem().Sentence(6),
			X:       columns*columnGap + 60,
			Y:       float64(i) * 200,
			Width:   180,
			Height:  120,
			Color:   f.Color().Hex(),
		})
	}
	return d
}

type generator struct {
	opts Options
	f    faker.Faker
}

// id derives a stable UUID from the seed, kind and ordinal.
func (g *generator) id(kind string, n int) string {
	name := fmt.Sprintf("erdsync/seed/%d/%s/%d", g.opts.Seed, kind, n)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func (g *generator) table(i int, name string, view bool) diagram.Table {
	t := diagram.Table{
		ID:     g.id("table", i),
		Name:   name,
		X:      float64(i%columns) * columnGap,
		Y:      float64(i/columns) * rowGap,
		IsView: view,
		Color:  g.f.Color().Hex(),
	}
	t.Fields = append(t.Fields, diagram.Field{
		ID: g.id("field", i*100), Name: "id", Type: "bigint", PrimaryKey: true,
	})
	seen := map[string]bool{"id": true}
	for j := 1; j <= g.f.IntBetween(2, 6); j++ {
		col := strings.ToLower(g.f.Lorem().Word())
		if seen[col] {
			continue
		}
		seen[col] = true
		t.Fields = append(t.Fields, diagram.Field{
			ID:       g.id("field", i*100+j),
			Name:     col,
			Type:     g.f.RandomStringElement(columnTypes),
			Nullable: g.f.Bool(),
		})
	}
	return t
}

func uniqueName(f faker.Faker, used map[string]bool) string {
	for {
		n := strings.ToLower(f.Lorem().Word()) + "s"
		if !used[n] {
			used[n] = true
			return n
		}
		n = fmt.Sprintf("%s_%d", n, len(used))
		if !used[n] {
			used[n] = true
			return n
		}
	}
}

func singular(name string) string {
	return strings.TrimSuffix(strings.TrimPrefix(name, "v_"), "s")
}
