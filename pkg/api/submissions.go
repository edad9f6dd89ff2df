package api

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/quantumdatasynergy/contact-api/pkg/apiresponses"
	"github.com/quantumdatasynergy/contact-api/pkg/notify"
	"github.com/quantumdatasynergy/contact-api/pkg/ratelimit"
	"github.com/quantumdatasynergy/contact-api/pkg/submission"
	"github.com/quantumdatasynergy/contact-api/pkg/system"
)

const (
	invalidBodyMessage      = "Invalid request body"
	contactFailedMessage    = "Failed to send message. Please try again later."
	newsletterFailedMessage = "Failed to subscribe to newsletter. Please try again later."
)

// Submitter is the dispatch pipeline behind the submission endpoints.
type Submitter interface {
	SubmitContact(ctx context.Context, clientID string, s submission.ContactSubmission) (notify.Receipt, error)
	SubmitNewsletter(ctx context.Context, clientID string, n submission.NewsletterSubscription) (notify.Receipt, error)
}

type ContactController struct {
	submitter     Submitter
	exposeDetails bool
	log           *zap.SugaredLogger
}

func NewContactController(submitter Submitter, exposeDetails bool, log *zap.SugaredLogger) *ContactController {
	return &ContactController{submitter: submitter, exposeDetails: exposeDetails, log: log.Named("contact")}
}

func (cc *ContactController) BasePath() string { return "contact" }

func (cc *ContactController) Handlers() []gin.HandlerFunc { return nil }

func (cc *ContactController) Register(rg *gin.RouterGroup) error {
	rg.POST("", cc.handleSubmit)
	return nil
}

func (cc *ContactController) handleSubmit(c *gin.Context) {
	log := system.GetReqLogger(c, cc.log)

	var payload submission.ContactSubmission
	if err := bindJSON(c, &payload); err != nil {
		log.Debugw("Rejected contact request body", "error", err)
		apiresponses.RespondBadRequest(c, invalidBodyMessage)
		return
	}

	receipt, err := cc.submitter.SubmitContact(c.Request.Context(), c.ClientIP(), payload)
	receipt.RateLimit.SetHeaders(c.Writer.Header(), time.Now())

	var rejected *ratelimit.RejectedError
	var invalid *notify.ValidationError
	switch {
	case err == nil:
		apiresponses.RespondSuccess(c, receipt.Message)
	case errors.As(err, &rejected):
		apiresponses.RespondTooManyRequests(c, rejected.Error())
	case errors.As(err, &invalid):
		apiresponses.RespondValidationFailed(c, invalid.Details)
	default:
		log.Errorw("Contact form submission failed", "error", err)
		apiresponses.RespondInternalError(c, contactFailedMessage, err, cc.exposeDetails)
	}
}

type NewsletterController struct {
	submitter     Submitter
	exposeDetails bool
	log           *zap.SugaredLogger
}

func NewNewsletterController(submitter Submitter, exposeDetails bool, log *zap.SugaredLogger) *NewsletterController {
	return &NewsletterController{submitter: submitter, exposeDetails: exposeDetails, log: log.Named("newsletter")}
}

func (nc *NewsletterController) BasePath() string { return "newsletter" }

func (nc *NewsletterController) Handlers() []gin.HandlerFunc { return nil }

func (nc *NewsletterController) Register(rg *gin.RouterGroup) error {
	rg.POST("", nc.handleSubscribe)
	return nil
}

func (nc *NewsletterController) handleSubscribe(c *gin.Context) {
	log := system.GetReqLogger(c, nc.log)

	var payload submission.NewsletterSubscription
	if err := bindJSON(c, &payload); err != nil {
		log.Debugw("Rejected newsletter request body", "error", err)
		apiresponses.RespondBadRequest(c, invalidBodyMessage)
		return
	}

	receipt, err := nc.submitter.SubmitNewsletter(c.Request.Context(), c.ClientIP(), payload)
	receipt.RateLimit.SetHeaders(c.Writer.Header(), time.Now())

	var rejected *ratelimit.RejectedError
	var invalid *notify.ValidationError
	switch {
	case err == nil:
		apiresponses.RespondSuccess(c, receipt.Message)
	case errors.As(err, &rejected):
		apiresponses.RespondTooManyRequests(c, rejected.Error())
	case errors.As(err, &invalid) && len(invalid.Details) > 0:
		apiresponses.RespondBadRequest(c, invalid.Details[0])
	default:
		log.Errorw("Newsletter subscription failed", "error", err)
		apiresponses.RespondInternalError(c, newsletterFailedMessage, err, nc.exposeDetails)
	}
}

// bindJSON decodes a JSON body into obj. An empty body, or one sent with
// another content type, leaves obj zero valued so that it is reported field
// by field by validation.
func bindJSON(c *gin.Context, obj any) error {
	if c.Request.Body == nil || c.ContentType() != binding.MIMEJSON {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
