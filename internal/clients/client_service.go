package clients

import (
	"context"
	"strings"

	"github.com/RustySnipers/optio/db"
	"github.com/RustySnipers/optio/internal/apperror"
	"github.com/RustySnipers/optio/models"
)

// ClientService manages client engagements, the scoping entity every
// script, scan, and asset hangs off.
type ClientService struct {
	Repository db.ClientRepository
}

func NewClientService(repo db.ClientRepository) *ClientService {
	return &ClientService{Repository: repo}
}

// Create registers a new client engagement. Names are unique.
func (s *ClientService) Create(ctx context.Context, name string) (*models.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.Validation("Client name is required")
	}

	existing, err := s.Repository.FindByName(ctx, name)
	if err != nil && err != db.ErrNotFound {
		return nil, apperror.Wrap(apperror.KindPersistence, err, "client lookup failed")
	}
	if existing != nil {
		return nil, apperror.Validation("Client %q already exists", name)
	}

	client, err := s.Repository.CreateOrUpdate(ctx, &models.Client{Name: name})
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, err, "client create failed")
	}
	return client, nil
}

// Get returns one client by ID.
func (s *ClientService) Get(ctx context.Context, id string) (*models.Client, error) {
	client, err := s.Repository.FindByID(ctx, id)
	if err == db.ErrNotFound {
		return nil, apperror.NotFound("client", id)
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, err, "client lookup failed")
	}
	return client, nil
}

// List returns all client engagements.
func (s *ClientService) List(ctx context.Context) ([]*models.Client, error) {
	list, err := s.Repository.FindAll(ctx)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, err, "client list failed")
	}
	return list, nil
}

// Delete removes a client engagement and everything scoped to it.
func (s *ClientService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.Repository.Delete(ctx, id); err != nil {
		return apperror.Wrap(apperror.KindPersistence, err, "client delete failed")
	}
	return nil
}
