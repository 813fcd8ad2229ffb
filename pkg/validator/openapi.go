package validator

import (
	_ "embed"
	"fmt"
	"sync"

	"companion-saas/backend/pkg/errors"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
)

// Schema is the OpenAPI document describing the public API
//
//go:embed openapi.yaml
var Schema []byte

// OpenAPIValidator validates requests against an OpenAPI document
type OpenAPIValidator struct {
	mutex      sync.RWMutex
	router     routers.Router
	schemaPath string
}

// NewOpenAPIValidator validates against the embedded schema, or against the
// file at schemaPath when it is not empty
func NewOpenAPIValidator(schemaPath string) (*OpenAPIValidator, error) {
	router, err := loadRouter(schemaPath)
	if err != nil {
		return nil, err
	}
	return &OpenAPIValidator{router: router, schemaPath: schemaPath}, nil
}

func loadRouter(path string) (routers.Router, error) {
	loader := openapi3.NewLoader()

	var doc *openapi3.T
	var err error
	if path == "" {
		doc, err = loader.LoadFromData(Schema)
	} else {
		doc, err = loader.LoadFromFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI schema: %w", err)
	}

	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI schema: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("error creating OpenAPI router: %w", err)
	}
	return router, nil
}

// ReloadSchema reloads the schema the validator was created with
func (v *OpenAPIValidator) ReloadSchema() error {
	router, err := loadRouter(v.schemaPath)
	if err != nil {
		return err
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.router = router
	return nil
}

// Middleware returns a Gin middleware rejecting requests that do not match
// the schema. Routes absent from the schema pass through unchecked.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		v.mutex.RLock()
		router := v.router
		v.mutex.RUnlock()

		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				MultiError:         false,
			},
		}

		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			if errors.IsBodyTooLarge(err) {
				c.Error(errors.NewBodyTooLargeError().Wrap(err))
			} else {
				c.Error(errors.NewBadRequestError("INVALID_REQUEST", "Request does not match the API schema").
					WithDetails(err.Error()).
					Wrap(err))
			}
			c.Abort()
			return
		}

		c.Next()
	}
}
