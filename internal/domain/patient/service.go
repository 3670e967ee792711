package patient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/actua/clinic/internal/domain/account"
	"github.com/actua/clinic/internal/platform/auth"
	"github.com/actua/clinic/internal/platform/blobstore"
)

var (
	ErrNotFound           = errors.New("patient not found")
	ErrUnknownConsentSlot = errors.New("unknown consent slot")
	ErrEmailTaken         = errors.New("a patient with this email already exists in the group")
	ErrGroupNotAllowed    = errors.New("group not allowed for this user")
)

var consentCategories = map[string]string{
	ConsentGeneral:    blobstore.CategoryConsentGeneral,
	ConsentMinor:      blobstore.CategoryConsentMinor,
	ConsentInjections: blobstore.CategoryConsentInjections,
}

type Service struct {
	patients Repository
	docs     DocumentRepository
	groups   account.GroupRepository
	blobs    blobstore.Store
}

func NewService(patients Repository, docs DocumentRepository, groups account.GroupRepository, blobs blobstore.Store) *Service {
	return &Service{patients: patients, docs: docs, groups: groups, blobs: blobs}
}

// visible reports whether the patient's group is one of the caller's
// specialty groups. Scoped-out rows read as missing, not forbidden.
func visible(p *Patient, callerGroups []string) bool {
	return auth.HasGroup(auth.RelevantGroups(callerGroups), p.GroupName)
}

func (s *Service) List(ctx context.Context, callerGroups []string, search string, limit, offset int) ([]*Patient, int, error) {
	relevant := auth.RelevantGroups(callerGroups)
	if len(relevant) == 0 {
		return []*Patient{}, 0, nil
	}
	return s.patients.List(ctx, ListParams{
		Groups: relevant,
		Search: strings.TrimSpace(search),
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID, callerGroups []string) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visible(p, callerGroups) {
		return nil, ErrNotFound
	}
	return p, nil
}

type Input struct {
	Name         string     `json:"name"`
	Surnames     string     `json:"surnames"`
	Email        string     `json:"email"`
	Phone        *string    `json:"phone"`
	BirthDate    *time.Time `json:"birth_date"`
	DNI          *string    `json:"dni"`
	Address      *string    `json:"address"`
	City         *string    `json:"city"`
	PostalCode   *string    `json:"postal_code"`
	Country      *string    `json:"country"`
	HasAllergies bool       `json:"has_allergies"`
	Pathologies  []string   `json:"pathologies"`
	Notes        *string    `json:"notes"`
	Group        string     `json:"group"`
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(in.Surnames) == "" {
		return fmt.Errorf("surnames are required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return fmt.Errorf("email is required")
	}
	return nil
}

// resolveGroup picks the patient's group: the explicit one if given, or
// the caller's single specialty group. Non-admins stay inside their own
// groups.
func (s *Service) resolveGroup(ctx context.Context, in Input, callerGroups []string) (*account.Group, error) {
	relevant := auth.RelevantGroups(callerGroups)

	name := in.Group
	if name == "" {
		if len(relevant) != 1 {
			return nil, fmt.Errorf("group is required")
		}
		name = relevant[0]
	}

	if !auth.IsAdmin(callerGroups) && !auth.HasGroup(relevant, name) {
		return nil, ErrGroupNotAllowed
	}
	return s.groups.GetByName(ctx, name)
}

func (s *Service) Create(ctx context.Context, in Input, callerGroups []string) (*Patient, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	g, err := s.resolveGroup(ctx, in, callerGroups)
	if err != nil {
		return nil, err
	}

	taken, err := s.patients.EmailExistsInGroup(ctx, g.ID, in.Email, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	p := &Patient{
		Name:         in.Name,
		Surnames:     in.Surnames,
		Email:        in.Email,
		Phone:        in.Phone,
		BirthDate:    in.BirthDate,
		DNI:          in.DNI,
		Address:      in.Address,
		City:         in.City,
		PostalCode:   in.PostalCode,
		Country:      in.Country,
		HasAllergies: in.HasAllergies,
		Pathologies:  in.Pathologies,
		Notes:        in.Notes,
		GroupID:      g.ID,
		GroupName:    g.Name,
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input, callerGroups []string) (*Patient, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, id, callerGroups)
	if err != nil {
		return nil, err
	}

	g, err := s.resolveGroup(ctx, Input{Group: firstNonEmpty(in.Group, p.GroupName)}, callerGroups)
	if err != nil {
		return nil, err
	}

	taken, err := s.patients.EmailExistsInGroup(ctx, g.ID, in.Email, p.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	p.Name = in.Name
	p.Surnames = in.Surnames
	p.Email = in.Email
	p.Phone = in.Phone
	p.BirthDate = in.BirthDate
	p.DNI = in.DNI
	p.Address = in.Address
	p.City = in.City
	p.PostalCode = in.PostalCode
	p.Country = in.Country
	p.HasAllergies = in.HasAllergies
	p.Pathologies = in.Pathologies
	p.Notes = in.Notes
	p.GroupID = g.ID
	p.GroupName = g.Name

	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID, callerGroups []string) error {
	p, err := s.Get(ctx, id, callerGroups)
	if err != nil {
		return err
	}

	// Remove attached files first; a missing blob is not fatal.
	for _, slot := range []string{ConsentGeneral, ConsentMinor, ConsentInjections} {
		if blobID := p.consentID(slot); blobID != nil {
			_ = s.blobs.Delete(ctx, *blobID)
		}
	}
	docs, err := s.docs.ListByPatient(ctx, id)
	if err != nil {
		return err
	}
	for _, d := range docs {
		_ = s.blobs.Delete(ctx, d.BlobID)
		if err := s.docs.Delete(ctx, d.ID); err != nil {
			return err
		}
	}

	return s.patients.Delete(ctx, id)
}

// ---- consent PDFs ----

func (s *Service) UploadConsent(ctx context.Context, id uuid.UUID, slot, fileName string, content io.Reader, callerGroups []string) (*blobstore.Metadata, error) {
	category, ok := consentCategories[slot]
	if !ok {
		return nil, ErrUnknownConsentSlot
	}
	p, err := s.Get(ctx, id, callerGroups)
	if err != nil {
		return nil, err
	}

	meta, err := s.blobs.Save(ctx, blobstore.Metadata{
		FileName:    fileName,
		ContentType: "application/pdf",
		Category:    category,
		OwnerID:     id,
	}, content)
	if err != nil {
		return nil, err
	}

	if old := p.consentID(slot); old != nil {
		_ = s.blobs.Delete(ctx, *old)
	}
	if err := s.patients.SetConsent(ctx, id, slot, &meta.ID); err != nil {
		return nil, err
	}
	return meta, nil
}

func (s *Service) OpenConsent(ctx context.Context, id uuid.UUID, slot string, callerGroups []string) (io.ReadCloser, *blobstore.Metadata, error) {
	if !ConsentSlots[slot] {
		return nil, nil, ErrUnknownConsentSlot
	}
	p, err := s.Get(ctx, id, callerGroups)
	if err != nil {
		return nil, nil, err
	}
	blobID := p.consentID(slot)
	if blobID == nil {
		return nil, nil, ErrNotFound
	}
	return s.blobs.Open(ctx, *blobID)
}

func (s *Service) DeleteConsent(ctx context.Context, id uuid.UUID, slot string, callerGroups []string) error {
	if !ConsentSlots[slot] {
		return ErrUnknownConsentSlot
	}
	p, err := s.Get(ctx, id, callerGroups)
	if err != nil {
		return err
	}
	blobID := p.consentID(slot)
	if blobID == nil {
		return ErrNotFound
	}
	if err := s.blobs.Delete(ctx, *blobID); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		return err
	}
	return s.patients.SetConsent(ctx, id, slot, nil)
}

// ---- extra documents ----

func (s *Service) AddDocument(ctx context.Context, id uuid.UUID, fileName, contentType string, content io.Reader, callerGroups []string) (*Document, error) {
	if _, err := s.Get(ctx, id, callerGroups); err != nil {
		return nil, err
	}
	meta, err := s.blobs.Save(ctx, blobstore.Metadata{
		FileName:    fileName,
		ContentType: contentType,
		Category:    blobstore.CategoryPatientDocument,
		OwnerID:     id,
	}, content)
	if err != nil {
		return nil, err
	}

	d := &Document{PatientID: id, BlobID: meta.ID, Name: fileName}
	if err := s.docs.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ListDocuments(ctx context.Context, id uuid.UUID, callerGroups []string) ([]*Document, error) {
	if _, err := s.Get(ctx, id, callerGroups); err != nil {
		return nil, err
	}
	return s.docs.ListByPatient(ctx, id)
}

func (s *Service) OpenDocument(ctx context.Context, patientID, docID uuid.UUID, callerGroups []string) (io.ReadCloser, *blobstore.Metadata, error) {
	if _, err := s.Get(ctx, patientID, callerGroups); err != nil {
		return nil, nil, err
	}
	d, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	if d.PatientID != patientID {
		return nil, nil, ErrNotFound
	}
	return s.blobs.Open(ctx, d.BlobID)
}

func (s *Service) DeleteDocument(ctx context.Context, patientID, docID uuid.UUID, callerGroups []string) error {
	if _, err := s.Get(ctx, patientID, callerGroups); err != nil {
		return err
	}
	d, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	if d.PatientID != patientID {
		return ErrNotFound
	}
	if err := s.blobs.Delete(ctx, d.BlobID); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		return err
	}
	return s.docs.Delete(ctx, docID)
}
