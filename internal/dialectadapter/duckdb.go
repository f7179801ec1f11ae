package dialectadapter

// DuckDB is the default target dialect (spec.md §4.G): the physical OLAP
// backend assumed by the worked examples. DuckDB supports the date_spine
// macro and generate_series natively, so it needs no table-function
// rewrites — it is the adapter's passthrough case.
var DuckDB = newBuilder("duckdb").build()
