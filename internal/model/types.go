package model

// Field types accepted in entity declarations.
const (
	TypeID        = "id"
	TypeText      = "text"
	TypeEnum      = "enum"
	TypeNumber    = "number"
	TypeInteger   = "integer"
	TypeBoolean   = "boolean"
	TypeDate      = "date"
	TypeTimestamp = "timestamp"
	TypeRef       = "ref"
)

// Relation types.
const (
	BelongsTo = "belongs_to"
	HasMany   = "has_many"
	HasOne    = "has_one"
)

// Record is one stored row keyed by column name.
type Record map[string]any

// Entity describes one stored collection and how it is exposed over HTTP.
type Entity struct {
	Name       string               `yaml:"-"`
	Table      string               `yaml:"table"`
	Label      string               `yaml:"label"`
	Route      string               `yaml:"route"`
	OwnerField string               `yaml:"owner_field"`
	OwnerOnly  bool                 `yaml:"owner_only"` // records are private to their owner and admins
	Fields     []*Field             `yaml:"fields"`
	Relations  map[string]*Relation `yaml:"relations"`
	List       ListConfig           `yaml:"list"`
	Statistics *StatisticsConfig    `yaml:"statistics"`
	Transition *TransitionConfig    `yaml:"transition"`
	Mine       string               `yaml:"mine"`
	Guards     GuardsConfig         `yaml:"guards"`
	Public     PublicConfig         `yaml:"public"`

	fieldIndex map[string]*Field
}

// Field is a declared column.
type Field struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	Values     []string `yaml:"values"`     // enum members
	References string   `yaml:"references"` // target entity for ref fields
	Fillable   *bool    `yaml:"fillable"`
	Hidden     bool     `yaml:"hidden"`
	Rules      string   `yaml:"rules"`
	Default    any      `yaml:"default"`
	Unique     bool     `yaml:"unique"`
	Blob       string   `yaml:"blob"` // upload folder; set only through the upload endpoint

	implicit bool
}

// Relation links an entity to another one.
type Relation struct {
	Type  string `yaml:"type"`
	Model string `yaml:"model"`
	FK    string `yaml:"fk"`
	Order string `yaml:"order"`

	target *Entity
}

type ListConfig struct {
	Sort    SortConfig    `yaml:"sort"`
	With    []string      `yaml:"with"`
	Filters FiltersConfig `yaml:"filters"`
	Search  []string      `yaml:"search"`
}

type SortConfig struct {
	Default   string   `yaml:"default"`
	Direction string   `yaml:"direction"`
	Allowed   []string `yaml:"allowed"`
}

type FiltersConfig struct {
	Equality []string      `yaml:"equality"`
	Set      []string      `yaml:"set"`
	Range    []RangeFilter `yaml:"range"`
}

// RangeFilter binds a column to its lower/upper query parameters.
type RangeFilter struct {
	Field string `yaml:"field"`
	From  string `yaml:"from"`
	To    string `yaml:"to"`
}

type StatisticsConfig struct {
	GroupBy []string `yaml:"group_by"`
	Sum     []string `yaml:"sum"`
	Avg     []string `yaml:"avg"`
}

// TransitionConfig exposes PATCH /{route}/{id}/{field}.
type TransitionConfig struct {
	Field          string   `yaml:"field"`
	TimestampField string   `yaml:"timestamp_field"`
	TimestampOn    []string `yaml:"timestamp_on"`
}

type GuardsConfig struct {
	DeleteBlockedBy []DeleteGuard `yaml:"delete_blocked_by"`
}

type DeleteGuard struct {
	Relation string `yaml:"relation"`
	Message  string `yaml:"message"`
}

type PublicConfig struct {
	Create    bool           `yaml:"create"`
	ListWhere map[string]any `yaml:"list_where"`
}

// Field returns the declared or implicit column with that name.
func (e *Entity) Field(name string) *Field {
	if e == nil {
		return nil
	}
	return e.fieldIndex[name]
}

func (e *Entity) Relation(name string) *Relation {
	if e == nil || e.Relations == nil {
		return nil
	}
	return e.Relations[name]
}

// Columns lists every stored column in declaration order, implicit ones included.
func (e *Entity) Columns() []string {
	cols := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		cols = append(cols, f.Name)
	}
	return cols
}

// VisibleColumns excludes hidden fields.
func (e *Entity) VisibleColumns() []string {
	cols := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if !f.Hidden {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// FillableFields returns fields a client payload may set.
func (e *Entity) FillableFields() []*Field {
	var out []*Field
	for _, f := range e.Fields {
		if f.IsFillable() {
			out = append(out, f)
		}
	}
	return out
}

func (e *Entity) HasOwner() bool { return e.OwnerField != "" }

// IsFillable is false for implicit columns and blob paths unless declared otherwise.
func (f *Field) IsFillable() bool {
	if f.implicit || f.Blob != "" {
		return false
	}
	if f.Fillable != nil {
		return *f.Fillable
	}
	return true
}

// Target returns the linked entity.
func (r *Relation) Target() *Entity {
	return r.target
}

func (r *Relation) Many() bool { return r.Type == HasMany }
