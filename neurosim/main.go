// Command neurosim runs neuron network simulations described by YAML files.
package main

import "github.com/sarchlab/neurosim/neurosim/cmd"

func main() {
	cmd.Execute()
}
