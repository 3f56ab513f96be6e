package swagger

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/iwtcode/icomService/docs"
)

// Config содержит настройки для Swagger
type Config struct {
	Enabled bool
	Path    string
}

// BasePath возвращает путь страницы без завершающего слэша.
func (c *Config) BasePath() string {
	p := "/" + strings.Trim(c.Path, "/")
	if p == "/" {
		return "/swagger"
	}
	return p
}

// Setup регистрирует страницу документации и редирект с базового пути.
func Setup(r *gin.Engine, cfg *Config) {
	if cfg == nil || !cfg.Enabled {
		return
	}
	base := cfg.BasePath()
	r.GET(base, func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, base+"/index.html")
	})
	r.GET(base+"/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.DocExpansion("list"),
		ginSwagger.DefaultModelsExpandDepth(1),
	))
}
