package app

import (
	"github.com/vk/meshflow/internal/registry"
	"github.com/vk/meshflow/modules/calculatepi"
)

// coreModules is the list of package modules compiled into the meshflow
// binary.
var coreModules = []registry.Module{
	calculatepi.Module{},
}
