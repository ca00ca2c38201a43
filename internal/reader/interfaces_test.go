package reader

import (
	"github.com/gillisandrew/lodestone/internal/domain"
	"github.com/gillisandrew/lodestone/internal/engine"
	"github.com/gillisandrew/lodestone/internal/mock"
)

// Compile-time checks that both engine implementations satisfy the boundary.
var (
	_ domain.Engine = (*engine.Service)(nil)
	_ domain.Engine = (*mock.Engine)(nil)
)
