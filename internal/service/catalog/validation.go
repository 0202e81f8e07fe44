package catalog

import (
	"fmt"
	"strings"

	"diskcatalog/internal/config"
	"diskcatalog/internal/domain"
	models "diskcatalog/internal/domain/models/catalog"
	catalogSvc "diskcatalog/internal/domain/services/catalog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var errNotBlank = validation.NewError("validation_not_blank", "must not be blank")

// notBlank rejects ids made only of whitespace
var notBlank = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return errNotBlank
	}
	return nil
})

var validKind = validation.By(func(value interface{}) error {
	kind, _ := value.(models.ItemKind)
	if !kind.Valid() {
		return validation.NewError("validation_kind", "must be FILE or FOLDER")
	}
	return nil
})

// positive also rejects zero, which validation.Min treats as empty
var positive = validation.By(func(value interface{}) error {
	size, _ := value.(*int64)
	if size != nil && *size <= 0 {
		return validation.NewError("validation_positive", "must be greater than 0")
	}
	return nil
})

// validateDescriptor checks the shape of one descriptor
func validateDescriptor(d *catalogSvc.ItemDescriptor) error {
	rules := []*validation.FieldRules{
		validation.Field(&d.ID, validation.Required, notBlank),
		validation.Field(&d.Kind, validation.Required, validKind),
		validation.Field(&d.ParentID, validation.NilOrNotEmpty),
	}

	switch d.Kind {
	case models.KindFolder:
		rules = append(rules,
			validation.Field(&d.URL, validation.Nil.Error("must be null for a folder")),
			validation.Field(&d.Size, validation.Nil.Error("must be null for a folder")),
		)
	case models.KindFile:
		rules = append(rules,
			validation.Field(&d.URL,
				validation.Required.Error("is required for a file"),
				validation.RuneLength(1, config.MaxURLLength),
			),
			validation.Field(&d.Size,
				validation.NotNil.Error("is required for a file"),
				positive,
			),
		)
	}

	return validation.ValidateStruct(d, rules...)
}

// validateBatch runs every shape check that needs no stored state
func validateBatch(req *catalogSvc.ImportRequest) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.Items,
			validation.Required.Error("must contain at least one item"),
			validation.Length(1, config.MaxBatchSize),
		),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	seen := make(map[string]int, len(req.Items))
	for i := range req.Items {
		d := &req.Items[i]
		if err := validateDescriptor(d); err != nil {
			return fmt.Errorf("%w: items[%d] (id %q): %v", domain.ErrValidation, i, d.ID, err)
		}
		if first, dup := seen[d.ID]; dup {
			return fmt.Errorf("%w: items[%d] repeats id %q of items[%d]", domain.ErrValidation, i, d.ID, first)
		}
		seen[d.ID] = i
	}

	return nil
}
