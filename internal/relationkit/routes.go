package relationkit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tyemirov/clipstream/internal/apperr"
	"github.com/tyemirov/clipstream/internal/sessionkit"
)

// RelationTargets supplies the target-exists capabilities for each relation
// kind. The engine stays generic; callers decide what a target is.
type RelationTargets struct {
	UserExists    ExistsCheck
	VideoExists   ExistsCheck
	CommentExists ExistsCheck
	TweetExists   ExistsCheck
}

// MountRelationRoutes registers the subscription and like surface on an
// already-authenticated router group.
func MountRelationRoutes(router gin.IRouter, engine *ToggleEngine, relations RelationStore, targets RelationTargets) {
	router.POST("/subscriptions/:channelID", func(contextGin *gin.Context) {
		actor, _ := sessionkit.CurrentUser(contextGin)
		channelID := contextGin.Param("channelID")
		if channelID == actor.ID {
			apperr.Respond(contextGin, apperr.Validation("subscription.self", "cannot subscribe to yourself"))
			return
		}
		respondToggle(contextGin, engine, actor.ID, channelID, KindSubscription, targets.UserExists)
	})

	router.GET("/channels/:channelID/subscribers", func(contextGin *gin.Context) {
		records, listErr := relations.ListActorsByTarget(contextGin.Request.Context(), contextGin.Param("channelID"), KindSubscription)
		if listErr != nil {
			apperr.Respond(contextGin, listErr)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"subscribers": records, "count": len(records)})
	})

	router.GET("/users/:userID/subscriptions", func(contextGin *gin.Context) {
		records, listErr := relations.ListTargetsByActor(contextGin.Request.Context(), contextGin.Param("userID"), KindSubscription)
		if listErr != nil {
			apperr.Respond(contextGin, listErr)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"subscriptions": records, "count": len(records)})
	})

	router.POST("/likes/videos/:videoID", func(contextGin *gin.Context) {
		actor, _ := sessionkit.CurrentUser(contextGin)
		respondToggle(contextGin, engine, actor.ID, contextGin.Param("videoID"), KindLikeVideo, targets.VideoExists)
	})

	router.POST("/likes/comments/:commentID", func(contextGin *gin.Context) {
		actor, _ := sessionkit.CurrentUser(contextGin)
		respondToggle(contextGin, engine, actor.ID, contextGin.Param("commentID"), KindLikeComment, targets.CommentExists)
	})

	router.POST("/likes/tweets/:tweetID", func(contextGin *gin.Context) {
		actor, _ := sessionkit.CurrentUser(contextGin)
		respondToggle(contextGin, engine, actor.ID, contextGin.Param("tweetID"), KindLikeTweet, targets.TweetExists)
	})

	router.GET("/likes/videos", func(contextGin *gin.Context) {
		actor, _ := sessionkit.CurrentUser(contextGin)
		records, listErr := relations.ListTargetsByActor(contextGin.Request.Context(), actor.ID, KindLikeVideo)
		if listErr != nil {
			apperr.Respond(contextGin, listErr)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"likes": records, "count": len(records)})
	})
}

func respondToggle(contextGin *gin.Context, engine *ToggleEngine, actorID string, targetID string, kind RelationKind, targetExists ExistsCheck) {
	result, toggleErr := engine.Toggle(contextGin.Request.Context(), actorID, targetID, kind, targetExists)
	if toggleErr != nil {
		apperr.Respond(contextGin, toggleErr)
		return
	}
	contextGin.JSON(http.StatusOK, result)
}
