package handler

import (
	"strconv"

	apperrors "go-pos-ws/pkg/errors"
	"go-pos-ws/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// renderError writes err as {"error":{"code","message","details"}} with the
// status registered for its code. Untyped errors are reported as internal.
func renderError(c *fiber.Ctx, err error) error {
	typed := apperrors.As(err)
	if typed == nil {
		typed = apperrors.Wrap(apperrors.CodeInternal, err, "internal server error")
	}
	meta := apperrors.MetadataFor(typed.Code())

	message := typed.Message()
	if meta.Retryable || message == "" {
		message = meta.PublicMessage
	}
	body := fiber.Map{
		"code":    typed.Code(),
		"message": message,
	}
	if meta.DetailsAllowed && typed.Details() != nil {
		body["details"] = typed.Details()
	}
	return c.Status(meta.HTTPStatus).JSON(fiber.Map{"error": body})
}

func badRequest(c *fiber.Ctx, message string) error {
	return renderError(c, apperrors.New(apperrors.CodeValidation, message))
}

// bind parses the JSON body into dst and runs struct validation. An empty
// body leaves dst at its zero value.
func bind(c *fiber.Ctx, dst interface{}) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(dst); err != nil {
			return apperrors.New(apperrors.CodeValidation, "invalid JSON")
		}
	}
	if errs := validator.ValidateStruct(dst); len(errs) > 0 {
		return apperrors.New(apperrors.CodeValidation, "field '"+errs[0].FailedField+"' failed on tag '"+errs[0].Tag+"'").
			WithDetails(errs)
	}
	return nil
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperrors.New(apperrors.CodeValidation, "invalid "+name)
	}
	return id, nil
}

func queryInt(c *fiber.Ctx, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.New(apperrors.CodeValidation, "invalid "+name)
	}
	return v, nil
}
