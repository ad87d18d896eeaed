package render

import (
	"bytes"
	"encoding/json"
	"net/http"

	"gitlab.com/derailed/derailed/internal/models"
)

type Renderer struct {
	envConfig *models.EnvConfig
}

func NewRenderer(envConfig *models.EnvConfig) Renderer {
	return Renderer{envConfig: envConfig}
}

// JSON writes data with the given status. Output is indented when
// debugging.
func (rd Renderer) JSON(w http.ResponseWriter, status int, data interface{}) error {
	buff := bytes.NewBuffer([]byte{})
	enc := json.NewEncoder(buff)
	if rd.envConfig != nil && rd.envConfig.Debug {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write(buff.Bytes())
	return err
}

func (rd Renderer) NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
