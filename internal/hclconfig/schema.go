package hclconfig

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block a file may contain.
type fileRoot struct {
	Mesh     []*meshBlock     `hcl:"mesh,block"`
	Driver   []*driverBlock   `hcl:"driver,block"`
	Parallel []*parallelBlock `hcl:"parallel,block"`
	Packages []*packageBlock  `hcl:"package,block"`
	Remain   hcl.Body         `hcl:",remain"`
}

type meshBlock struct {
	NX1   *int     `hcl:"nx1,optional"`
	NX2   *int     `hcl:"nx2,optional"`
	X1Min *float64 `hcl:"x1min,optional"`
	X1Max *float64 `hcl:"x1max,optional"`
	X2Min *float64 `hcl:"x2min,optional"`
	X2Max *float64 `hcl:"x2max,optional"`
	MBNX1 *int     `hcl:"mb_nx1,optional"`
	MBNX2 *int     `hcl:"mb_nx2,optional"`
}

type driverBlock struct {
	UseMeshPack *bool   `hcl:"use_mesh_pack,optional"`
	SummaryPath *string `hcl:"summary_path,optional"`
	Workers     *int    `hcl:"workers,optional"`
	Async       *bool   `hcl:"async,optional"`
	StreamDepth *int    `hcl:"stream_depth,optional"`
}

type parallelBlock struct {
	Mode    *string `hcl:"mode,optional"`
	Rank    *int    `hcl:"rank,optional"`
	Ranks   *int    `hcl:"ranks,optional"`
	Addr    *string `hcl:"addr,optional"`
	Timeout *string `hcl:"timeout,optional"`
}

type packageBlock struct {
	Name   string           `hcl:"name,label"`
	Params *paramsBlock     `hcl:"params,block"`
	Fields []*variableBlock `hcl:"field,block"`
	Sparse []*sparseBlock   `hcl:"sparse,block"`
	Swarms []*swarmBlock    `hcl:"swarm,block"`
}

type paramsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type variableBlock struct {
	Name       string         `hcl:"name,label"`
	Role       *string        `hcl:"role,optional"`
	Flags      []string       `hcl:"flags,optional"`
	Shape      []int          `hcl:"shape,optional"`
	Attributes hcl.Expression `hcl:"attributes,optional"`
}

type sparseBlock struct {
	Name       string         `hcl:"name,label"`
	ID         int            `hcl:"id"`
	Role       *string        `hcl:"role,optional"`
	Flags      []string       `hcl:"flags,optional"`
	Shape      []int          `hcl:"shape,optional"`
	Attributes hcl.Expression `hcl:"attributes,optional"`
}

type swarmBlock struct {
	Name   string           `hcl:"name,label"`
	Role   *string          `hcl:"role,optional"`
	Flags  []string         `hcl:"flags,optional"`
	Values []*variableBlock `hcl:"value,block"`
}
