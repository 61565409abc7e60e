//go:build !linux

package datasource

import "os"

func adviseSequential(*os.File) {}
