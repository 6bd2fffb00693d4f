package lang

// tsSpec is shared between TypeScript and TSX; the grammars differ, the
// node kinds the extractor cares about do not.
func tsSpec(language Language, extensions []string) *Spec {
	return &Spec{
		Language:       language,
		FileExtensions: extensions,

		FunctionNodeTypes:  []string{"function_declaration", "function_expression", "arrow_function", "method_definition", "generator_function_declaration", "generator_function"},
		ClassNodeTypes:     []string{"class_declaration", "abstract_class_declaration", "interface_declaration", "class"},
		AttributeNodeTypes: []string{"public_field_definition", "property_signature"},
		CallNodeTypes:      []string{"call_expression", "new_expression"},
		ImportNodeTypes:    []string{"import_statement"},

		DecoratorNodeTypes: []string{"decorator"},
		BranchingNodeTypes: []string{"if_statement", "for_statement", "for_in_statement", "while_statement", "do_statement", "switch_case", "catch_clause", "ternary_expression"},
		ReturnNodeTypes:    []string{"return_statement"},
		YieldNodeTypes:     []string{"yield_expression"},
		ReferenceNodeTypes: []string{"identifier", "member_expression"},

		AsyncKeyword:  "async",
		StaticKeyword: "static",

		DynamicImportCallees: []string{"require", "import"},
		ExceptionBases:       []string{"Error"},
	}
}

func init() {
	Register(tsSpec(TypeScript, []string{".ts", ".mts", ".cts"}))
	Register(tsSpec(TSX, []string{".tsx"}))
}
