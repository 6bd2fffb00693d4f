package lang

func init() {
	Register(&Spec{
		Language:       Go,
		FileExtensions: []string{".go"},

		FunctionNodeTypes:  []string{"function_declaration", "method_declaration"},
		ClassNodeTypes:     []string{"type_spec"},
		AttributeNodeTypes: []string{"field_declaration"},
		CallNodeTypes:      []string{"call_expression"},
		ImportNodeTypes:    []string{"import_declaration"},

		BranchingNodeTypes: []string{"if_statement", "for_statement", "expression_case", "type_case", "communication_case"},
		ReturnNodeTypes:    []string{"return_statement"},
		ReferenceNodeTypes: []string{"identifier", "selector_expression"},
	})
}
