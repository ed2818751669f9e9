package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labrag/backend-go/app/bootstrap"
	"github.com/labrag/backend-go/internal/knowledge"
)

var validate = validator.New()

// SearchController 语义检索接口
type SearchController struct {
	BaseController
}

// SearchRequest 检索请求体
type SearchRequest struct {
	Query  string `json:"query" validate:"required"`
	TopK   int    `json:"top_k" validate:"omitempty,gte=1"`
	Filter struct {
		DocumentID string `json:"document_id"`
		Filename   string `json:"filename"`
		Format     string `json:"format" validate:"omitempty,oneof=pptx xlsx docx pdf"`
	} `json:"filter"`
	WithContext bool `json:"with_context"`
}

// Search 检索知识库
// POST /api/search
func (c *SearchController) Search() {
	app := bootstrap.GetApp()
	if app == nil {
		c.JSONError(http.StatusServiceUnavailable, "服务未初始化")
		return
	}

	var req SearchRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "请求体格式错误")
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSONError(http.StatusBadRequest, "请求参数无效: "+err.Error())
		return
	}

	var filter *knowledge.QueryFilter
	if req.Filter.DocumentID != "" || req.Filter.Filename != "" || req.Filter.Format != "" {
		filter = &knowledge.QueryFilter{
			DocumentID: req.Filter.DocumentID,
			Filename:   req.Filter.Filename,
			Format:     knowledge.Format(req.Filter.Format),
		}
	}

	results, err := app.Retriever().Retrieve(c.Ctx.Request.Context(), req.Query, req.TopK, filter)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	data := map[string]interface{}{
		"query":   req.Query,
		"results": results,
		"total":   len(results),
	}
	if req.WithContext {
		data["context"] = knowledge.FormatContext(results)
	}

	c.JSONSuccess(data)
}
