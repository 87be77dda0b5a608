// Package dimensions builds the dimension seeds that sit around the fact
// table: providers, sub codes, the TAC line seed, sub code labels harvested
// from the illustrative reference workbooks, and the enriched fact table that
// joins them.
//
// Each job writes its mapping CSV under the mappings directory and
// materialises the same rows as a DuckDB table. Reruns replace both.
package dimensions
