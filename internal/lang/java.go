package lang

func init() {
	Register(&Spec{
		Language:       Java,
		FileExtensions: []string{".java"},

		FunctionNodeTypes:  []string{"method_declaration", "constructor_declaration"},
		ClassNodeTypes:     []string{"class_declaration", "interface_declaration", "enum_declaration", "record_declaration"},
		AttributeNodeTypes: []string{"field_declaration"},
		CallNodeTypes:      []string{"method_invocation", "object_creation_expression"},
		ImportNodeTypes:    []string{"import_declaration"},

		DecoratorNodeTypes: []string{"annotation", "marker_annotation"},
		BranchingNodeTypes: []string{"if_statement", "for_statement", "enhanced_for_statement", "while_statement", "do_statement", "catch_clause", "switch_block_statement_group", "ternary_expression"},
		ReturnNodeTypes:    []string{"return_statement"},
		YieldNodeTypes:     []string{"yield_statement"},
		ReferenceNodeTypes: []string{"identifier", "field_access"},

		StaticKeyword: "static",

		ExceptionBases: []string{"Exception", "RuntimeException", "Throwable"},
	})
}
