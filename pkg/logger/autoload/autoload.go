// Package autoload initialises the global logger from LOG_* environment
// variables as a side effect of being imported.
package autoload

import (
	configx "github.com/finsight-labs/finsight/pkg/config"
	logx "github.com/finsight-labs/finsight/pkg/logger"
)

func init() {
	conf := configx.MustNew[logx.Config]("LOG")
	logx.Init(*conf)
}
