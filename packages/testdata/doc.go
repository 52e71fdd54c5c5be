// Package testdata loads data-driven test suites from YAML or JSON files.
//
// A suite file looks like:
//
//	testSuite: User CRUD
//	baseEndpoint: records
//	testCases:
//	  - name: create_record
//	    method: POST
//	    endpoint: records
//	    body: {name: John Doe}
//	    expectedStatus: 201
//	    assertions:
//	      - {field: id, operator: exists}
//
// The loader only decodes; Suite.Validate performs the semantic checks.
package testdata
