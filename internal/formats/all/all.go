// Package all registers every built-in format handler. Import it for its
// side effects:
//
//	import _ "github.com/tierline/tierline/internal/formats/all"
package all

import (
	_ "github.com/tierline/tierline/internal/formats/csv"
	_ "github.com/tierline/tierline/internal/formats/eaf"
	_ "github.com/tierline/tierline/internal/formats/tierdoc"
)
