package main

import (
	"go.uber.org/zap"

	"github.com/pmkol/rrcache-x/coremain"
	"github.com/pmkol/rrcache-x/mlog"
)

func main() {
	if err := coremain.Run(); err != nil {
		mlog.L().Fatal("rrcache exited", zap.Error(err))
	}
}
