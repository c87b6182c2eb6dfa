package service

import (
	"context"
	"errors"

	"lexflow/internal/document/blob"
	"lexflow/internal/document/models"
	"lexflow/internal/document/render"
	id "lexflow/pkg/domain"
	dErrors "lexflow/pkg/domain-errors"
	"lexflow/pkg/platform/sentinel"
	"lexflow/pkg/requestcontext"
)

// ListVersions returns a document's snapshots, original first.
func (s *Service) ListVersions(ctx context.Context, actorID id.UserID, docID id.DocumentID) ([]*models.Version, error) {
	if _, err := s.Get(ctx, actorID, docID); err != nil {
		return nil, err
	}
	versions, err := s.versions.ListByDocument(ctx, docID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list versions")
	}
	return versions, nil
}

// VersionContent returns a snapshot and its rendered bytes.
func (s *Service) VersionContent(ctx context.Context, actorID id.UserID, docID id.DocumentID, versionID id.VersionID) (*models.Version, []byte, error) {
	if _, err := s.Get(ctx, actorID, docID); err != nil {
		return nil, nil, err
	}
	v, err := s.versions.FindByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "version not found")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load version")
	}
	if v.DocumentID != docID {
		return nil, nil, dErrors.New(dErrors.CodeNotFound, "version not found")
	}
	data, err := s.blobs.Get(ctx, v.BlobKey)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read version content")
	}
	return v, data, nil
}

// snapshot renders doc with the given signature lines, stores the blob and
// appends the version record. It must run inside the signing transaction.
// A blob written before a rollback stays behind unreferenced; keys are
// content digests, so a retry reuses it.
func (s *Service) snapshot(ctx context.Context, doc *models.Document, typ models.VersionType, number int, signerID *id.UserID, lines []render.SignatureLine) (*models.Version, error) {
	out, err := s.renderer.Render(ctx, render.Input{
		Title:      doc.Title,
		Content:    doc.Content,
		Variables:  doc.Variables,
		Signatures: lines,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render document snapshot")
	}

	digest := blob.Digest(out.Data)
	key := blob.Key(digest)
	if err := s.blobs.Put(ctx, key, out.ContentType, out.Data); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document snapshot")
	}

	v := &models.Version{
		ID:          id.NewVersionID(),
		DocumentID:  doc.ID,
		Type:        typ,
		Number:      number,
		SignerID:    signerID,
		BlobKey:     key,
		Digest:      digest,
		ContentType: out.ContentType,
		Size:        int64(len(out.Data)),
		CreatedAt:   requestcontext.Now(ctx),
	}
	if err := s.versions.Append(ctx, v); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append version")
	}
	return v, nil
}

// signatureLines describes the signed records for rendering.
func (s *Service) signatureLines(ctx context.Context, sigs []*models.Signature) ([]render.SignatureLine, error) {
	var lines []render.SignatureLine
	for _, sig := range sigs {
		if !sig.Signed || sig.SignedAt == nil {
			continue
		}
		name := sig.SignerID.String()
		user, err := s.users.Get(ctx, sig.SignerID)
		switch {
		case err == nil && user.Name != "":
			name = user.Name
		case err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound):
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load signer")
		}
		lines = append(lines, render.SignatureLine{
			SignerName: name,
			SignedAt:   *sig.SignedAt,
			IPAddress:  sig.IPAddress,
			Position:   sig.Position,
		})
	}
	return lines, nil
}
