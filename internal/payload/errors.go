package payload

import "sketchforge/internal/services"

func invalid(op, message string) error {
	return services.Wrap(services.ErrInvalidArgument, "payload", op, message, nil)
}
