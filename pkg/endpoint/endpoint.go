// Package endpoint defines the EndpointDefinition data model:
// an immutable, tagged-union description of one gateway-exposed endpoint.
package endpoint

import "fmt"

// Kind identifies which variant of EndpointDefinition is populated.
type Kind string

const (
	KindSQL       Kind = "sql"
	KindProxy     Kind = "proxy"
	KindComposite Kind = "composite"
	KindFile      Kind = "file"
	KindStatic    Kind = "static"
)

// Method is an HTTP verb the gateway recognises on an endpoint.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"
	MethodMerge  Method = "MERGE" // aliased to PATCH at dispatch time
)

// Definition is the immutable, tagged-union record for one endpoint.
// Exactly one of SQL, Proxy, Composite, File, Static is non-nil, selected
// by Kind. Definitions are never mutated after the registry publishes them.
type Definition struct {
	Name           string
	Namespace      string
	Kind           Kind
	AllowedMethods []Method
	IsPrivate      bool

	SQL       *SQLSpec
	Proxy     *ProxySpec
	Composite *CompositeSpec
	File      *FileSpec
	Static    *StaticSpec

	// Extra preserves descriptor fields the current schema doesn't model,
	// for forward compatibility with newer operator tooling.
	Extra map[string]any
}

// FullPath is Namespace/Name, or just Name when Namespace is empty. Scopes
// and registry lookups are expressed against this value.
func (d *Definition) FullPath() string {
	if d.Namespace == "" {
		return d.Name
	}
	return d.Namespace + "/" + d.Name
}

// AllowsMethod reports whether m (already normalised, MERGE->PATCH done by
// the caller) is in AllowedMethods, with implicit GET always permitted.
func (d *Definition) AllowsMethod(m Method) bool {
	if m == MethodGet {
		return true
	}
	for _, am := range d.AllowedMethods {
		allowed := am
		if allowed == MethodMerge {
			allowed = MethodPatch
		}
		if allowed == m {
			return true
		}
	}
	return false
}

// ObjectType identifies what a SQL endpoint's ObjectName names.
type ObjectType string

const (
	ObjectTable               ObjectType = "table"
	ObjectView                ObjectType = "view"
	ObjectStoredProcedure     ObjectType = "stored_procedure"
	ObjectTableValuedFunction ObjectType = "table_valued_function"
)

// ColumnValidation is a per-column regex + message validation rule.
type ColumnValidation struct {
	Pattern string
	Message string
}

// AllowedColumn is one entry of an endpoint's ordered AllowedColumns list:
// either "alias:db_column" or bare "column" (alias == column).
type AllowedColumn struct {
	Alias  string
	Column string
}

// ParamSource identifies where a TVF parameter's value comes from.
type ParamSource string

const (
	ParamSourcePath   ParamSource = "path"
	ParamSourceQuery  ParamSource = "query"
	ParamSourceHeader ParamSource = "header"
)

// TVFParameter describes one positional/named parameter of a
// table-valued-function endpoint.
type TVFParameter struct {
	Name     string
	Source   ParamSource
	Position int    // 1-based, only meaningful when Source == path
	Key      string // query/header key, only meaningful otherwise
	SQLType  string
	Required bool
	Default  string // literal "DEFAULT" token, or a default value
	Pattern  string
}

// SQLSpec is the SQL-only portion of a Definition.
type SQLSpec struct {
	Schema           string
	ObjectName       string
	ObjectType       ObjectType
	PrimaryKey       string
	AllowedColumns   []AllowedColumn
	RequiredColumns  []string
	ColumnValidation map[string]ColumnValidation
	Parameters       []TVFParameter // TVF only
	Procedure        string         // stored-procedure name for mutating verbs, if distinct from ObjectName
}

// AliasMap returns alias->column and column->alias maps built from
// AllowedColumns, used by the OData compiler.
func (s *SQLSpec) AliasMap() (aliasToColumn map[string]string, columnToAlias map[string]string) {
	aliasToColumn = make(map[string]string, len(s.AllowedColumns))
	columnToAlias = make(map[string]string, len(s.AllowedColumns))
	for _, c := range s.AllowedColumns {
		aliasToColumn[c.Alias] = c.Column
		columnToAlias[c.Column] = c.Alias
	}
	return aliasToColumn, columnToAlias
}

// OrderedAliases returns the endpoint's aliases in AllowedColumns declaration
// order, used as the default $select projection order.
func (s *SQLSpec) OrderedAliases() []string {
	aliases := make([]string, len(s.AllowedColumns))
	for i, c := range s.AllowedColumns {
		aliases[i] = c.Alias
	}
	return aliases
}

// HeaderKV is a single header key/value appended by a proxy endpoint's
// HeaderAppend rule, supporting {ORIGINAL_METHOD}/{TRANSLATED_METHOD}
// placeholders.
type HeaderKV struct {
	Key   string
	Value string
}

// HeaderConflictPolicy controls what happens when a header the proxy wants
// to append is already present on the inbound client request.
type HeaderConflictPolicy string

const (
	HeaderSkip       HeaderConflictPolicy = "skip"
	HeaderOverwrite  HeaderConflictPolicy = "overwrite"
	HeaderLogAndAdd  HeaderConflictPolicy = "log_and_add"
)

// ProxySpec is the Proxy-only portion of a Definition.
type ProxySpec struct {
	TargetURLTemplate string
	MethodTranslation map[Method]Method
	HeaderAppend      map[Method][]HeaderKV
	ConflictPolicy    HeaderConflictPolicy
}

// CompositeStep is one step of a composite plan.
type CompositeStep struct {
	Name            string
	Endpoint        string // name of a Proxy endpoint
	Method          Method
	IsArray         bool
	ArrayProperty   string
	SourceProperty  string
	TemplateBody    string
	DependsOn       []string
	ContinueOnError bool
}

// CompositeSpec is the Composite-only portion of a Definition.
type CompositeSpec struct {
	Steps []CompositeStep
}

// FileSpec is the File-only portion of a Definition.
type FileSpec struct {
	StorageRoot       string
	AllowedExtensions []string
	MaxBytes          int64
	MemoryOnly        bool
}

// StaticSpec is the Static-only portion of a Definition.
type StaticSpec struct {
	ContentType     string
	Path            string
	EnableFiltering bool
	// Payload is the loaded file content, cached at registry load time.
	Payload []byte
}

// Validate checks the structural invariants of a descriptor that can be
// verified without a live database connection. Registry loading must
// reject a descriptor that fails Validate rather than admit it and fail
// later.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("endpoint: Name is required")
	}
	switch d.Kind {
	case KindSQL:
		return d.validateSQL()
	case KindProxy:
		if d.Proxy == nil || d.Proxy.TargetURLTemplate == "" {
			return fmt.Errorf("endpoint %s: proxy TargetUrlTemplate is required", d.Name)
		}
	case KindComposite:
		return d.validateComposite()
	case KindFile:
		if d.File == nil || d.File.StorageRoot == "" {
			return fmt.Errorf("endpoint %s: file StorageRoot is required", d.Name)
		}
	case KindStatic:
		if d.Static == nil || d.Static.Path == "" {
			return fmt.Errorf("endpoint %s: static Path is required", d.Name)
		}
	default:
		return fmt.Errorf("endpoint %s: unknown kind %q", d.Name, d.Kind)
	}
	return nil
}

func (d *Definition) validateSQL() error {
	s := d.SQL
	if s == nil {
		return fmt.Errorf("endpoint %s: sql spec is required", d.Name)
	}
	if s.ObjectName == "" {
		return fmt.Errorf("endpoint %s: ObjectName is required", d.Name)
	}
	aliasToColumn, _ := s.AliasMap()

	// invariant (ii): RequiredColumns ⊆ keys(AllowedColumns)
	for _, req := range s.RequiredColumns {
		if _, ok := aliasToColumn[req]; !ok {
			return fmt.Errorf("endpoint %s: required column %q is not in AllowedColumns", d.Name, req)
		}
	}
	// invariant (iv): SQL DELETE requires PrimaryKey
	for _, m := range d.AllowedMethods {
		if m == MethodDelete && s.PrimaryKey == "" {
			return fmt.Errorf("endpoint %s: DELETE requires PrimaryKey", d.Name)
		}
	}
	// invariant (v): path-sourced TVF parameter positions are 1-based and
	// contiguous for positions actually used.
	if s.ObjectType == ObjectTableValuedFunction {
		var positions []int
		for _, p := range s.Parameters {
			if p.Source == ParamSourcePath {
				positions = append(positions, p.Position)
			}
		}
		if err := checkContiguous(positions); err != nil {
			return fmt.Errorf("endpoint %s: %w", d.Name, err)
		}
	}
	return nil
}

func checkContiguous(positions []int) error {
	if len(positions) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(positions))
	max := 0
	for _, p := range positions {
		if p < 1 {
			return fmt.Errorf("path parameter position %d is not 1-based", p)
		}
		if seen[p] {
			return fmt.Errorf("duplicate path parameter position %d", p)
		}
		seen[p] = true
		if p > max {
			max = p
		}
	}
	for i := 1; i <= max; i++ {
		if !seen[i] {
			return fmt.Errorf("path parameter positions are not contiguous: missing %d", i)
		}
	}
	return nil
}

func (d *Definition) validateComposite() error {
	c := d.Composite
	if c == nil || len(c.Steps) == 0 {
		return fmt.Errorf("endpoint %s: composite requires at least one step", d.Name)
	}
	names := make(map[string]bool, len(c.Steps))
	for _, step := range c.Steps {
		if step.Name == "" {
			return fmt.Errorf("endpoint %s: composite step name is required", d.Name)
		}
		if names[step.Name] {
			return fmt.Errorf("endpoint %s: duplicate composite step name %q", d.Name, step.Name)
		}
		names[step.Name] = true
	}
	order, err := TopoSort(c.Steps)
	if err != nil {
		return fmt.Errorf("endpoint %s: %w", d.Name, err)
	}
	_ = order
	return nil
}

// TopoSort orders steps so every step appears after everything in its
// DependsOn, returning an error if the dependency graph has a cycle or
// refers to an unknown step name (invariant (iii)).
func TopoSort(steps []CompositeStep) ([]CompositeStep, error) {
	byName := make(map[string]CompositeStep, len(steps))
	for _, s := range steps {
		byName[s.Name] = s
	}
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(steps))
	var order []CompositeStep
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("composite DependsOn cycle detected: %v", append(path, name))
		}
		step, ok := byName[name]
		if !ok {
			return fmt.Errorf("composite step %q depends on unknown step %q", path[len(path)-1], name)
		}
		color[name] = gray
		for _, dep := range step.DependsOn {
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		color[name] = black
		order = append(order, step)
		return nil
	}
	for _, s := range steps {
		if color[s.Name] == white {
			if err := visit(s.Name, nil); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}
