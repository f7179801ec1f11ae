// Package rewrite assembles the per-object query descriptors built by
// internal/semantic/descriptor into one executable statement: a dependency
// ordered WITH clause of generated CTEs, spliced in front of the original
// statement with every manifest-object table reference stripped down to a
// bare name referencing its CTE (spec.md §4.F).
package rewrite

import (
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/semlayer/internal/dialectadapter"
	"github.com/leapstack-labs/semlayer/internal/manifest"
	"github.com/leapstack-labs/semlayer/internal/semantic/analyzer"
	"github.com/leapstack-labs/semlayer/internal/semantic/descriptor"
	"github.com/leapstack-labs/semlayer/pkg/ast"
	"github.com/leapstack-labs/semlayer/pkg/sqlparse"
	"github.com/leapstack-labs/semlayer/pkg/sqlwrite"
)

// Options carries the session settings a rewrite runs under (spec.md §6
// SessionContext, the subset relevant to planning a single statement).
type Options struct {
	Catalog             string
	Schema              string
	EnableDynamicFields bool

	// Dialect is the target engine's rewrite rules (spec.md §4.G). Nil
	// defaults to dialectadapter.DuckDB, the physical backend assumed by the
	// worked examples.
	Dialect *dialectadapter.Dialect

	// SkipDialectAdapter runs every pass up to and including CTE splicing but
	// leaves the statement dialect-neutral (spec.md §6's dry_plan
	// modeling_only flag): no function/table rewrites, no reserved-word
	// quoting beyond the printer's own bare-identifier rule.
	SkipDialectAdapter bool
}

// Result is the outcome of a successful Plan.
type Result struct {
	// SQL is the final, executable statement: the original query with its
	// manifest-object references spliced to bare CTE names and a WITH
	// clause of generated CTEs prepended.
	SQL string
	// Objects is every manifest object (plus the date spine, if present)
	// realized as a CTE, in emission order.
	Objects []string
}

// Plan rewrites stmt against am, producing the executable SQL described by
// spec.md §4. stmt is mutated in place (its table references are spliced);
// callers that need the original tree should parse it again.
func Plan(am *manifest.AnalyzedManifest, stmt *ast.SelectStmt, opts Options) (*Result, error) {
	session := analyzer.Session{Catalog: opts.Catalog, Schema: opts.Schema, EnableDynamicFields: opts.EnableDynamicFields}

	a := analyzer.New(am, session)
	ares, err := a.Analyze(stmt)
	if err != nil {
		return nil, &PlanError{Stage: StageAnalyzed, Err: err}
	}

	b := descriptor.NewBuilder(am, opts.EnableDynamicFields, opts.Catalog, opts.Schema)

	p, err := newPlan(am, b, ares)
	if err != nil {
		return nil, err
	}
	if err := p.buildCore(); err != nil {
		return nil, err
	}
	if err := p.buildViews(); err != nil {
		return nil, err
	}

	stripManifestQualifiers(am, session, stmt)

	ctes, err := p.cteList()
	if err != nil {
		return nil, err
	}
	final := &ast.SelectStmt{
		NodeInfo: stmt.NodeInfo,
		With:     stmt.With,
		Body:     stmt.Body,
	}
	if len(ctes) > 0 {
		var userCTEs []*ast.CTE
		if stmt.With != nil {
			userCTEs = stmt.With.CTEs
		}
		// Generated CTEs (models, relationship targets, views) must come
		// first: a user-written CTE may itself select from one of them.
		final.With = &ast.WithClause{CTEs: append(ctes, userCTEs...)}
	}

	if opts.SkipDialectAdapter {
		return &Result{SQL: sqlwrite.Print(final), Objects: p.order}, nil
	}

	dialect := opts.Dialect
	if dialect == nil {
		dialect = dialectadapter.DuckDB
	}
	dialectadapter.Adapt(dialect, final)

	sql := sqlwrite.PrintWithConfig(final, sqlwrite.QuoteConfig{IsReserved: dialect.IsReserved})
	return &Result{SQL: sql, Objects: p.order}, nil
}

// plan accumulates the descriptors a statement needs. Model, metric and
// cumulative-metric requirements are fully known upfront from one
// whole-statement lineage closure (internal/semantic/descriptor.Builder's
// Closure and BaseRequirements, which already resolve relationship-join
// targets and metric/cumulative-metric base objects); views are the one
// case whose requirements are discovered only after parsing their body, so
// they get their own follow-up pass.
type plan struct {
	am *manifest.AnalyzedManifest
	b  *descriptor.Builder

	kindOf map[string]string
	cols   map[string][]string
	source map[string]bool
	views  []string

	built map[string]*descriptor.Descriptor
	order []string

	dateSpine *descriptor.Descriptor
}

func newPlan(am *manifest.AnalyzedManifest, b *descriptor.Builder, ares *analyzer.Result) (*plan, error) {
	p := &plan{
		am:     am,
		b:      b,
		kindOf: make(map[string]string),
		cols:   make(map[string][]string),
		source: make(map[string]bool),
		built:  make(map[string]*descriptor.Descriptor),
	}

	var modelSeeds []string
	modelCollected := make(map[string][]string)
	baseSeed := make(map[string]map[string]bool)

	for _, ref := range ares.Objects {
		p.kindOf[ref.Name] = ref.Kind
		collected := collectedList(ares, ref.Name)
		if _, ok := ares.SourceNodes[ref.Name]; ok {
			p.source[ref.Name] = true
		}

		switch ref.Kind {
		case "model":
			modelCollected[ref.Name] = collected
			for _, c := range collected {
				modelSeeds = append(modelSeeds, ref.Name+"."+c)
			}
		case "metric", "cumulativeMetric":
			p.cols[ref.Name] = collected
			baseObject, baseCols, err := p.b.BaseRequirements(ref.Name, ref.Kind, collected)
			if err != nil {
				return nil, &PlanError{Stage: StageDescriptorsBuilt, Object: ref.Name, Err: err}
			}
			if baseObject != "" {
				if baseSeed[baseObject] == nil {
					baseSeed[baseObject] = make(map[string]bool)
				}
				for _, c := range baseCols {
					baseSeed[baseObject][c] = true
				}
			}
			if ref.Kind == "cumulativeMetric" {
				if err := p.ensureDateSpine(ref.Name); err != nil {
					return nil, err
				}
			}
		case "view":
			p.views = append(p.views, ref.Name)
		}
	}
	for obj, set := range baseSeed {
		for c := range set {
			modelSeeds = append(modelSeeds, obj+"."+c)
		}
	}

	if len(modelSeeds) > 0 {
		closure, err := p.b.Closure(modelSeeds)
		if err != nil {
			return nil, &PlanError{Stage: StageDescriptorsBuilt, Err: err}
		}
		for _, obj := range closure.Objects {
			if _, known := p.kindOf[obj]; !known {
				if _, kind, ok := am.Object(obj); ok {
					p.kindOf[obj] = kind
				}
			}
			cols := append([]string(nil), closure.Columns(obj)...)
			have := make(map[string]bool, len(cols))
			for _, c := range cols {
				have[c] = true
			}
			for _, c := range modelCollected[obj] {
				if !have[c] {
					cols = append(cols, c)
				}
			}
			p.cols[obj] = cols
			p.addOrder(obj)
		}
	}

	// Metrics and cumulative metrics sit after their base objects in
	// emission order; models touched only as a dummy or pure source node
	// were never seeded and need a place in the order too. Views are
	// ordered by buildViews instead, once their own requirements — which
	// must precede them — are known.
	for _, ref := range ares.Objects {
		if ref.Kind == "view" {
			continue
		}
		p.addOrder(ref.Name)
	}

	return p, nil
}

func (p *plan) addOrder(name string) {
	for _, o := range p.order {
		if o == name {
			return
		}
	}
	p.order = append(p.order, name)
}

func collectedList(ares *analyzer.Result, object string) []string {
	set := ares.CollectedColumns[object]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// buildCore builds every model, metric and cumulative-metric descriptor
// already queued by newPlan, in dependency order. It runs on one goroutine
// because p's own bookkeeping (built, order) isn't synchronized — the
// shared internal/semantic/lineage.Analyzer each Closure/BaseRequirements
// call reads through descriptor.Builder is itself safe for concurrent use
// (its expression cache is mutex-guarded), which is what lets
// internal/session cache and reuse one Builder across concurrent Plan calls
// against the same manifest and session.
func (p *plan) buildCore() error {
	for _, name := range p.order {
		if name == descriptor.DateSpineName {
			continue // already realized by ensureDateSpine
		}
		kind := p.kindOf[name]
		if kind == "view" {
			continue // views are built by buildViews, which can fan them out concurrently
		}
		columns, sourceOnly := p.columnsFor(name, kind)
		d, err := p.b.Build(name, kind, columns, sourceOnly)
		if err != nil {
			return &PlanError{Stage: StageDescriptorsBuilt, Object: name, Err: err}
		}
		p.built[name] = d
	}
	return nil
}

// buildViews builds every top-level view descriptor concurrently — each
// runs its own self-contained recursive analyzer.Analyze pass and touches
// no shared descriptor.Builder state, unlike model/metric construction, so
// fanning them out is safe. Once built, any object a view's body requires
// that the core pass never reached (an object reachable only from inside
// the view) is realized with a full-column projection: the nested analysis
// reports which objects, not which columns of them, so buildCore's narrow
// per-column tracking can't be extended across that boundary.
func (p *plan) buildViews() error {
	if len(p.views) == 0 {
		return nil
	}
	results := make([]*descriptor.Descriptor, len(p.views))
	var g errgroup.Group
	for i, name := range p.views {
		i, name := i, name
		g.Go(func() error {
			d, err := p.b.Build(name, "view", nil, true)
			if err != nil {
				return &PlanError{Stage: StageDescriptorsBuilt, Object: name, Err: err}
			}
			results[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, name := range p.views {
		d := results[i]
		for _, req := range d.RequiredObjects {
			if _, done := p.built[req]; !done {
				if _, kind, ok := p.am.Object(req); ok {
					built, err := p.b.Build(req, kind, p.b.AllColumns(req, kind), false)
					if err != nil {
						return &PlanError{Stage: StageDescriptorsBuilt, Object: req, Err: err}
					}
					p.built[req] = built
				}
			}
			p.addOrder(req) // no-op if already ordered by the core pass
		}
		p.built[name] = d
		p.addOrder(name) // after its requirements, just added or already present
	}
	return nil
}

// columnsFor resolves the columns and sourceOnly flag to build name with.
func (p *plan) columnsFor(name, kind string) ([]string, bool) {
	if p.source[name] {
		return p.b.AllColumns(name, kind), true
	}
	if cols, ok := p.cols[name]; ok {
		return cols, false
	}
	return nil, false
}

// ensureDateSpine builds the shared date-spine CTE the first time any
// cumulative metric requires it, using that metric's window. A second,
// differently windowed cumulative metric in the same statement cannot share
// the single spine CTE and is rejected rather than silently mis-windowed.
func (p *plan) ensureDateSpine(fromCumulativeMetric string) error {
	cm, ok := p.am.CumulativeMetric(fromCumulativeMetric)
	if !ok || cm.Window == nil {
		return &PlanError{Stage: StageDescriptorsBuilt, Object: fromCumulativeMetric, Err: fmt.Errorf("missing window")}
	}
	spine := descriptor.DateSpineDescriptor(cm.Window.TimeUnit, cm.Window.Start, cm.Window.End)
	if p.dateSpine == nil {
		p.dateSpine = spine
		p.built[descriptor.DateSpineName] = spine
		p.addOrder(descriptor.DateSpineName)
		return nil
	}
	if p.dateSpine.SQL != spine.SQL {
		return &PlanError{
			Stage:  StageDescriptorsBuilt,
			Object: fromCumulativeMetric,
			Err:    fmt.Errorf("needs a differently windowed date spine than one already in this statement"),
		}
	}
	return nil
}

// cteList renders every built descriptor, in dependency order, as a *ast.CTE
// by reparsing the descriptor's printed SQL text: the descriptor and splice
// passes are decoupled through plain SQL rather than a shared tree, at the
// cost of one extra parse per CTE.
func (p *plan) cteList() ([]*ast.CTE, error) {
	ctes := make([]*ast.CTE, 0, len(p.order))
	for _, name := range p.order {
		d, ok := p.built[name]
		if !ok {
			continue
		}
		stmt, err := sqlparse.Parse(d.SQL)
		if err != nil {
			return nil, &PlanError{Stage: StageCTEsAssembled, Object: name, Err: err}
		}
		ctes = append(ctes, &ast.CTE{Name: name, Select: stmt})
	}
	return ctes, nil
}
