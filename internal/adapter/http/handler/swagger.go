package handler

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"healthpay-wallet/pkg/apperror"
	"healthpay-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIYAML []byte

// openAPIJSON converts the embedded document once, on first request.
var openAPIJSON = sync.OnceValues(func() ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(openAPIYAML, &doc); err != nil {
		return nil, fmt.Errorf("parsing openapi.yaml: %w", err)
	}
	return json.Marshal(doc)
})

const swaggerPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>HealthPay Wallet Sandbox</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({ url: '/swagger/spec.json', dom_id: '#swagger-ui' });
  </script>
</body>
</html>`

// SwaggerSpec serves the OpenAPI document as YAML.
func SwaggerSpec(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", openAPIYAML)
}

// SwaggerSpecJSON serves the same document as JSON for tooling that
// cannot read YAML.
func SwaggerSpecJSON(c *gin.Context) {
	doc, err := openAPIJSON()
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	c.Data(http.StatusOK, "application/json", doc)
}

func SwaggerUI(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerPage))
}
