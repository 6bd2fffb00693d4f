package lang

func init() {
	Register(&Spec{
		Language:       Rust,
		FileExtensions: []string{".rs"},

		FunctionNodeTypes:  []string{"function_item"},
		ClassNodeTypes:     []string{"struct_item", "enum_item", "trait_item"},
		AttributeNodeTypes: []string{"field_declaration"},
		CallNodeTypes:      []string{"call_expression"},
		ImportNodeTypes:    []string{"use_declaration"},

		DecoratorNodeTypes: []string{"attribute_item"},
		BranchingNodeTypes: []string{"if_expression", "while_expression", "loop_expression", "for_expression", "match_arm"},
		ReturnNodeTypes:    []string{"return_expression"},
		ReferenceNodeTypes: []string{"identifier", "scoped_identifier"},

		AsyncKeyword: "async",
	})
}
