package reference

// Built-in manifests for examples and tests.

// Classifier takes a 1x3x256x256 "data" image and reduces it to a 1x3x1x1
// "out" through relu, global average pooling and a unit scale.
const Classifier = `
name = "classifier"

[[input]]
name = "data"
shape = [1, 3, 256, 256]
type = "float32"
layout = "nchw"

[[op]]
name = "act"
type = "relu"
inputs = ["data"]
output = "feat"

[[op]]
name = "pool"
type = "global_avg_pool"
inputs = ["feat"]
output = "pooled"

[[op]]
name = "head"
type = "scale"
inputs = ["pooled"]
output = "out"
scale = 1.0
bias = 0.0

[[output]]
name = "out"
`

// DynamicClassifier is Classifier with unresolved height and width.
const DynamicClassifier = `
name = "dynamic-classifier"

[[input]]
name = "data"
shape = [1, 3, -1, -1]
type = "float32"
layout = "nchw"

[[op]]
name = "act"
type = "relu"
inputs = ["data"]
output = "feat"

[[op]]
name = "pool"
type = "global_avg_pool"
inputs = ["feat"]
output = "out"
`

// Residual adds two inputs and applies softmax over the last axis.
const Residual = `
name = "residual"

[[input]]
name = "x"
shape = [2, 4]

[[input]]
name = "y"
shape = [2, 4]

[[op]]
name = "sum"
type = "add"
inputs = ["x", "y"]
output = "s"

[[op]]
name = "prob"
type = "softmax"
inputs = ["s"]
output = "prob"
`
