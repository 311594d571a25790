// Package loader builds pipelines from YAML definitions.
//
// Definitions name their entity, processor and handler types; a Catalog
// maps those names to Go types and factories. Build resolves references
// between pipelines depth-first, rejects cycles and type mismatches, and
// returns a Set of initialized pipelines. Typed access goes through Lookup
// and LookupCollection; callers that only have JSON use a Runner.
//
//	pipelines:
//	  - name: active-entities
//	    type: collection
//	    entity_type: demo.Entity
//	    processors:
//	      - name: names
//	        type: demo.EntityNameProcessor
//	        condition: Active == "ACTIVE"
//	        settings:
//	          name_prefix: "acct-"
//	      - reference: audit
//
// Graph renders a set of definitions as DOT for inspection.
package loader
