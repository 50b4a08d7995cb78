package main

import (
	"os"

	"github.com/zhengshuai-xiao/git-fastcdc/cmd"
	"github.com/zhengshuai-xiao/git-fastcdc/internal"
)

var logger = internal.GetLogger("main")

func main() {
	err := cmd.Main(os.Args)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(cmd.ExitCode(err))
	}
}
