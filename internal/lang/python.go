package lang

func init() {
	Register(&Spec{
		Language:       Python,
		FileExtensions: []string{".py", ".pyi"},

		FunctionNodeTypes:  []string{"function_definition"},
		ClassNodeTypes:     []string{"class_definition"},
		AttributeNodeTypes: []string{"assignment"},
		CallNodeTypes:      []string{"call"},
		ImportNodeTypes:    []string{"import_statement"},
		ImportFromTypes:    []string{"import_from_statement"},

		DecoratorNodeTypes: []string{"decorator"},
		BranchingNodeTypes: []string{"if_statement", "elif_clause", "for_statement", "while_statement", "except_clause", "with_statement", "conditional_expression", "boolean_operator"},
		ReturnNodeTypes:    []string{"return_statement"},
		YieldNodeTypes:     []string{"yield"},
		ReferenceNodeTypes: []string{"identifier", "attribute"},

		AsyncKeyword: "async",

		DynamicImportCallees: []string{"importlib.import_module", "__import__"},
		ExceptionBases:       []string{"Exception", "BaseException"},
		AbstractBases:        []string{"ABC", "ABCMeta", "abc.ABC"},
		DataclassDecorators:  []string{"dataclass", "dataclasses.dataclass", "attr.s", "attrs.define"},
	})
}
