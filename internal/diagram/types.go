package diagram

import "time"

// Cardinality is the multiplicity annotation on one end of a relationship.
type Cardinality string

const (
	CardinalityOne  Cardinality = "one"
	CardinalityMany Cardinality = "many"
)

// Field is a single column of a table.
type Field struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Type       string `json:"type" yaml:"type"`
	PrimaryKey bool   `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty"`
	Nullable   bool   `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Unique     bool   `json:"unique,omitempty" yaml:"unique,omitempty"`
}

// Table is a database table or view placed on the canvas.
//
// ParentAreaID is a weak reference to the Area whose bounds fully contain
// the table; "" means none. Areas hold no back-references.
type Table struct {
	ID           string  `json:"id" yaml:"id"`
	Name         string  `json:"name" yaml:"name"`
	Schema       string  `json:"schema,omitempty" yaml:"schema,omitempty"`
	X            float64 `json:"x" yaml:"x"`
	Y            float64 `json:"y" yaml:"y"`
	Width        float64 `json:"width,omitempty" yaml:"width,omitempty"`
	Fields       []Field `json:"fields" yaml:"fields"`
	IsView       bool    `json:"isView,omitempty" yaml:"isView,omitempty"`
	Expanded     bool    `json:"expanded,omitempty" yaml:"expanded,omitempty"`
	Color        string  `json:"color,omitempty" yaml:"color,omitempty"`
	ParentAreaID string  `json:"parentAreaId,omitempty" yaml:"parentAreaId,omitempty"`
}

// Field returns the field with the given id.
func (t Table) Field(id string) (Field, bool) {
	for _, f := range t.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// Relationship links a source field to a target field.
type Relationship struct {
	ID                string      `json:"id" yaml:"id"`
	Name              string      `json:"name" yaml:"name"`
	SourceSchema      string      `json:"sourceSchema,omitempty" yaml:"sourceSchema,omitempty"`
	SourceTableID     string      `json:"sourceTableId" yaml:"sourceTableId"`
	SourceFieldID     string      `json:"sourceFieldId" yaml:"sourceFieldId"`
	TargetSchema      string      `json:"targetSchema,omitempty" yaml:"targetSchema,omitempty"`
	TargetTableID     string      `json:"targetTableId" yaml:"targetTableId"`
	TargetFieldID     string      `json:"targetFieldId" yaml:"targetFieldId"`
	SourceCardinality Cardinality `json:"sourceCardinality" yaml:"sourceCardinality"`
	TargetCardinality Cardinality `json:"targetCardinality" yaml:"targetCardinality"`
}

// Dependency records that DependentTableID (typically a view) depends on
// TableID.
type Dependency struct {
	ID               string `json:"id" yaml:"id"`
	Schema           string `json:"schema,omitempty" yaml:"schema,omitempty"`
	TableID          string `json:"tableId" yaml:"tableId"`
	DependentTableID string `json:"dependentTableId" yaml:"dependentTableId"`
}

// Area is a rectangular region used to group tables.
type Area struct {
	ID     string  `json:"id" yaml:"id"`
	Name   string  `json:"name" yaml:"name"`
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
	Color  string  `json:"color,omitempty" yaml:"color,omitempty"`
}

// Bounds returns the area rectangle.
func (a Area) Bounds() Rect {
	return Rect{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height}
}

// Note is a free-form sticky note.
type Note struct {
	ID      string  `json:"id" yaml:"id"`
	Content string  `json:"content" yaml:"content"`
	X       float64 `json:"x" yaml:"x"`
	Y       float64 `json:"y" yaml:"y"`
	Width   float64 `json:"width" yaml:"width"`
	Height  float64 `json:"height" yaml:"height"`
	Color   string  `json:"color,omitempty" yaml:"color,omitempty"`
}

// Bounds returns the note rectangle.
func (n Note) Bounds() Rect {
	return Rect{X: n.X, Y: n.Y, Width: n.Width, Height: n.Height}
}

// CustomTypeKind distinguishes enum and composite types.
type CustomTypeKind string

const (
	CustomTypeEnum      CustomTypeKind = "enum"
	CustomTypeComposite CustomTypeKind = "composite"
)

// CustomType is a user-defined database type.
type CustomType struct {
	ID     string         `json:"id" yaml:"id"`
	Schema string         `json:"schema,omitempty" yaml:"schema,omitempty"`
	Name   string         `json:"name" yaml:"name"`
	Kind   CustomTypeKind `json:"kind" yaml:"kind"`
	Values []string       `json:"values,omitempty" yaml:"values,omitempty"`
}

// Diagram is the full persisted aggregate for one database model.
type Diagram struct {
	ID            string         `json:"id" yaml:"id"`
	Name          string         `json:"name" yaml:"name"`
	DatabaseType  string         `json:"databaseType" yaml:"databaseType"`
	Tables        []Table        `json:"tables" yaml:"tables"`
	Relationships []Relationship `json:"relationships" yaml:"relationships"`
	Dependencies  []Dependency   `json:"dependencies" yaml:"dependencies"`
	Areas         []Area         `json:"areas" yaml:"areas"`
	Notes         []Note         `json:"notes" yaml:"notes"`
	CustomTypes   []CustomType   `json:"customTypes" yaml:"customTypes"`
	CreatedAt     time.Time      `json:"createdAt" yaml:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt" yaml:"updatedAt"`
}

// Clone returns a deep copy of d. Nil collections stay nil.
func (d Diagram) Clone() Diagram {
	out := d
	out.Tables = cloneTables(d.Tables)
	out.Relationships = cloneSlice(d.Relationships)
	out.Dependencies = cloneSlice(d.Dependencies)
	out.Areas = cloneSlice(d.Areas)
	out.Notes = cloneSlice(d.Notes)
	out.CustomTypes = cloneSlice(d.CustomTypes)
	for i := range out.CustomTypes {
		out.CustomTypes[i].Values = cloneSlice(out.CustomTypes[i].Values)
	}
	return out
}

func cloneTables(in []Table) []Table {
	out := cloneSlice(in)
	for i := range out {
		out[i].Fields = cloneSlice(out[i].Fields)
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	return append(make([]T, 0, len(in)), in...)
}
