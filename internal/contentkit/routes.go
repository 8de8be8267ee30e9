package contentkit

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tyemirov/clipstream/internal/apperr"
	"github.com/tyemirov/clipstream/internal/sessionkit"
	"github.com/tyemirov/clipstream/internal/uploader"
)

// MountContentRoutes registers the video, comment, and tweet surface. Reads
// mount on the public router so anonymous visitors can browse; every write
// mounts on the protected router and expects an identity on the context.
func MountContentRoutes(public gin.IRouter, protected gin.IRouter, content ContentStore, uploads uploader.Uploader) {
	protected.POST("/videos", func(contextGin *gin.Context) {
		owner, _ := sessionkit.CurrentUser(contextGin)
		title := strings.TrimSpace(contextGin.PostForm("title"))
		if title == "" {
			apperr.Respond(contextGin, apperr.Validation("video.missing_title", "title is required"))
			return
		}
		header, headerErr := contextGin.FormFile("video")
		if headerErr != nil {
			apperr.Respond(contextGin, apperr.Validation("video.missing_file", "video file is required"))
			return
		}
		source, openErr := header.Open()
		if openErr != nil {
			apperr.Respond(contextGin, apperr.Upstream("video.open", "could not read upload", openErr))
			return
		}
		defer func() { _ = source.Close() }()
		asset, uploadErr := uploads.Upload(contextGin.Request.Context(), header.Filename, header.Header.Get("Content-Type"), source)
		if uploadErr != nil {
			apperr.Respond(contextGin, apperr.Upstream("video.upload", "video upload failed", uploadErr))
			return
		}
		video, createErr := content.CreateVideo(contextGin.Request.Context(), Video{
			OwnerID:         owner.ID,
			Title:           title,
			Description:     strings.TrimSpace(contextGin.PostForm("description")),
			URL:             asset.URL,
			DurationSeconds: asset.DurationSeconds,
		})
		if createErr != nil {
			apperr.Respond(contextGin, createErr)
			return
		}
		contextGin.JSON(http.StatusCreated, gin.H{"video": video})
	})

	public.GET("/videos", func(contextGin *gin.Context) {
		videos, listErr := content.ListVideos(contextGin.Request.Context())
		if listErr != nil {
			apperr.Respond(contextGin, listErr)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"videos": videos, "count": len(videos)})
	})

	public.GET("/videos/:videoID", func(contextGin *gin.Context) {
		videoID := contextGin.Param("videoID")
		video, getErr := content.GetVideo(contextGin.Request.Context(), videoID)
		if getErr != nil {
			apperr.Respond(contextGin, getErr)
			return
		}
		if viewErr := content.IncrementVideoViews(contextGin.Request.Context(), videoID); viewErr == nil {
			video.Views++
		}
		contextGin.JSON(http.StatusOK, gin.H{"video": video})
	})

	protected.POST("/videos/:videoID/comments", func(contextGin *gin.Context) {
		owner, _ := sessionkit.CurrentUser(contextGin)
		var inbound struct {
			Body string `json:"body"`
		}
		if bindErr := contextGin.BindJSON(&inbound); bindErr != nil || strings.TrimSpace(inbound.Body) == "" {
			apperr.Respond(contextGin, apperr.Validation("comment.missing_body", "comment body is required"))
			return
		}
		videoID := contextGin.Param("videoID")
		if _, getErr := content.GetVideo(contextGin.Request.Context(), videoID); getErr != nil {
			apperr.Respond(contextGin, getErr)
			return
		}
		comment, createErr := content.CreateComment(contextGin.Request.Context(), Comment{
			OwnerID: owner.ID,
			VideoID: videoID,
			Body:    strings.TrimSpace(inbound.Body),
		})
		if createErr != nil {
			apperr.Respond(contextGin, createErr)
			return
		}
		contextGin.JSON(http.StatusCreated, gin.H{"comment": comment})
	})

	public.GET("/videos/:videoID/comments", func(contextGin *gin.Context) {
		comments, listErr := content.ListCommentsByVideo(contextGin.Request.Context(), contextGin.Param("videoID"))
		if listErr != nil {
			apperr.Respond(contextGin, listErr)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"comments": comments, "count": len(comments)})
	})

	protected.DELETE("/comments/:commentID", func(contextGin *gin.Context) {
		owner, _ := sessionkit.CurrentUser(contextGin)
		if deleteErr := content.DeleteComment(contextGin.Request.Context(), contextGin.Param("commentID"), owner.ID); deleteErr != nil {
			apperr.Respond(contextGin, deleteErr)
			return
		}
		contextGin.Status(http.StatusNoContent)
	})

	protected.POST("/tweets", func(contextGin *gin.Context) {
		owner, _ := sessionkit.CurrentUser(contextGin)
		var inbound struct {
			Body string `json:"body"`
		}
		if bindErr := contextGin.BindJSON(&inbound); bindErr != nil || strings.TrimSpace(inbound.Body) == "" {
			apperr.Respond(contextGin, apperr.Validation("tweet.missing_body", "tweet body is required"))
			return
		}
		tweet, createErr := content.CreateTweet(contextGin.Request.Context(), Tweet{
			OwnerID: owner.ID,
			Body:    strings.TrimSpace(inbound.Body),
		})
		if createErr != nil {
			apperr.Respond(contextGin, createErr)
			return
		}
		contextGin.JSON(http.StatusCreated, gin.H{"tweet": tweet})
	})

	public.GET("/users/:userID/tweets", func(contextGin *gin.Context) {
		tweets, listErr := content.ListTweetsByOwner(contextGin.Request.Context(), contextGin.Param("userID"))
		if listErr != nil {
			apperr.Respond(contextGin, listErr)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"tweets": tweets, "count": len(tweets)})
	})

	protected.DELETE("/tweets/:tweetID", func(contextGin *gin.Context) {
		owner, _ := sessionkit.CurrentUser(contextGin)
		if deleteErr := content.DeleteTweet(contextGin.Request.Context(), contextGin.Param("tweetID"), owner.ID); deleteErr != nil {
			apperr.Respond(contextGin, deleteErr)
			return
		}
		contextGin.Status(http.StatusNoContent)
	})
}
