package treesitter

// Structural patterns over the tree-sitter YAML grammar. Every capture is
// named; the classifier never touches raw capture indices.

// queryExtends matches extends: with a scalar or list value.
const queryExtends = `
(
  (block_mapping_pair
    key: (flow_node) @key
    value: [
      (flow_node) @value
      (block_node (block_sequence (block_sequence_item (flow_node) @value)))
    ])
  (#eq? @key "extends")
)
`

// queryStage matches a job-level stage: scalar.
const queryStage = `
(
  (block_mapping_pair
    key: (flow_node) @key
    value: (flow_node) @value)
  (#eq? @key "stage")
)
`

// queryVariableValue matches the value-bearing keys whose values may carry
// variable interpolations.
const queryVariableValue = `
(
  (block_mapping_pair
    key: (flow_node) @key
    value: (_) @value)
  (#match? @key "^(image|before_script|after_script|script|rules|variables|parallel)$")
)
`

// queryNeedsScalar matches the shorthand needs list form: needs: [job].
const queryNeedsScalar = `
(
  (block_mapping_pair
    key: (flow_node) @key
    value: (block_node
      (block_sequence
        (block_sequence_item (flow_node) @job))))
  (#eq? @key "needs")
)
`

// queryNeedsJob matches the mapping form: needs: [{job: name}].
const queryNeedsJob = `
(
  (block_mapping_pair
    key: (flow_node) @key
    value: (block_node
      (block_sequence
        (block_sequence_item
          (block_node
            (block_mapping
              (block_mapping_pair
                key: (flow_node) @jobkey
                value: (flow_node) @job)))))))
  (#eq? @key "needs")
  (#eq? @jobkey "job")
)
`

// queryRootNode matches any top-level key of the document.
const queryRootNode = `
(stream
  (document
    (block_node
      (block_mapping
        (block_mapping_pair
          key: (flow_node) @key) @pair))))
`

// queryIncludeItemPair matches one key/value pair inside a structured include
// list item, together with the enclosing item node so pairs of the same entry
// can be reassembled.
const queryIncludeItemPair = `
(
  (block_mapping_pair
    key: (flow_node) @dirkey
    value: (block_node
      (block_sequence
        (block_sequence_item
          (block_node
            (block_mapping
              (block_mapping_pair
                key: (flow_node) @itemkey
                value: [
                  (flow_node) @itemvalue
                  (block_node (block_sequence (block_sequence_item (flow_node) @filevalue)))
                ])))) @item)))
  (#eq? @dirkey "include")
)
`

// queryIncludeBasic matches bare string entries of an include list, and the
// single-string directive form.
const queryIncludeBasic = `
(
  (block_mapping_pair
    key: (flow_node) @dirkey
    value: [
      (flow_node) @basic
      (block_node (block_sequence (block_sequence_item (flow_node) @basic)))
    ])
  (#eq? @dirkey "include")
)
`
