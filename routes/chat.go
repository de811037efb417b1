package routes

import (
	"context"
	"net/http"
	"time"

	"eebc-advisor/internal/logger"
	"eebc-advisor/middleware"
	"eebc-advisor/models"
	"eebc-advisor/services"
	"eebc-advisor/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// pipelineTimeout bounds one whole pipeline invocation, including the
// generation and embedding calls it makes.
const pipelineTimeout = 30 * time.Second

// SetupChatRoutes registers the advisor endpoints.
func SetupChatRoutes(router *gin.Engine, pipeline *services.Pipeline) {
	api := router.Group("/api")

	api.POST("/chat", func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		conversationID := req.ConversationID
		if conversationID == "" {
			conversationID = uuid.NewString()
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), pipelineTimeout)
		defer cancel()

		result, err := pipeline.Run(ctx, req.Message, req.Context)
		if err != nil {
			logger.Error("Pipeline failed",
				"request_id", middleware.GetRequestID(c),
				"conversation_id", conversationID,
				"error", err)
			utils.RespondWithInternalError(c, "Failed to generate an answer", nil)
			return
		}

		sources := result.Sources
		if sources == nil {
			sources = []models.Source{}
		}

		c.JSON(http.StatusOK, models.ChatResponse{
			Answer:         result.Answer,
			Applies:        result.Verdict.Applies,
			Reason:         result.Verdict.Reason,
			Sources:        sources,
			Context:        result.Profile,
			ConversationID: conversationID,
		})
	})
}
