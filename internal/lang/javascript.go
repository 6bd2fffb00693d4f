package lang

func init() {
	Register(&Spec{
		Language:       JavaScript,
		FileExtensions: []string{".js", ".jsx", ".mjs", ".cjs"},

		FunctionNodeTypes:  []string{"function_declaration", "function_expression", "arrow_function", "method_definition", "generator_function_declaration", "generator_function"},
		ClassNodeTypes:     []string{"class_declaration", "class"},
		AttributeNodeTypes: []string{"field_definition"},
		CallNodeTypes:      []string{"call_expression", "new_expression"},
		ImportNodeTypes:    []string{"import_statement"},

		DecoratorNodeTypes: []string{"decorator"},
		BranchingNodeTypes: []string{"if_statement", "for_statement", "for_in_statement", "while_statement", "do_statement", "switch_case", "catch_clause", "ternary_expression"},
		ReturnNodeTypes:    []string{"return_statement"},
		YieldNodeTypes:     []string{"yield_expression"},
		ReferenceNodeTypes: []string{"identifier", "member_expression"},

		AsyncKeyword: "async",

		DynamicImportCallees: []string{"require", "import"},
		ExceptionBases:       []string{"Error"},
	})
}
