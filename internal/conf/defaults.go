// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "PestWatch")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "pestwatch.log")
	viper.SetDefault("main.log.level", "info")

	viper.SetDefault("pipeline.backlog.path", "static/backlog")
	viper.SetDefault("pipeline.results.path", "static/results")
	viper.SetDefault("pipeline.results.maxcount", 15)

	viper.SetDefault("pipeline.model.path", "models/pestwatch.onnx")
	viper.SetDefault("pipeline.model.labelspath", "models/labels.txt")
	viper.SetDefault("pipeline.model.inputsize", 640)
	viper.SetDefault("pipeline.model.confidence", 0.25)
	viper.SetDefault("pipeline.model.nms", 0.45)

	viper.SetDefault("pipeline.annotation.fontpath", "")
	viper.SetDefault("pipeline.annotation.fontsize", 18.0)

	viper.SetDefault("camera.host", "http://10.10.54.41")
	viper.SetDefault("camera.timeout", 2*time.Second)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "insect_analytics.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "pestwatch")
	viper.SetDefault("output.mysql.password", "pestwatch")
	viper.SetDefault("output.mysql.database", "pestwatch")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "5000")
}
