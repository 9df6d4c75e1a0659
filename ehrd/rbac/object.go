package rbac

import "github.com/google/uuid"

// Resource kinds protected by the engine.
const (
	ResourceClient        = "client"
	ResourceAppointment   = "appointment"
	ResourceClinicalNote  = "clinical_note"
	ResourceBillingRecord = "billing_record"
)

// Object is the ownership snapshot of one resource instance, used by
// compiled filters to evaluate membership in memory. Fields are strings so
// a filter term can compare them without caring where they came from.
type Object struct {
	// ID is the resource's own id.
	ID string `json:"id"`
	// ClientID is the owning client, for resources attached to a client.
	// For client records themselves it equals ID.
	ClientID string `json:"client_id"`
	// ClinicianID is the authoring or treating clinician, when the
	// resource has one.
	ClinicianID string `json:"clinician_id"`
	// OrgID is the owning organization.
	OrgID string `json:"org"`
	// Type is one of the Resource* constants.
	Type string `json:"type"`
}

// Objecter is implemented by database rows that can report their ownership
// snapshot for filtering.
type Objecter interface {
	RBACObject() Object
}

func (z Object) RBACObject() Object {
	return z
}

// ClientObject builds the snapshot for a client record.
func ClientObject(id, orgID uuid.UUID) Object {
	return Object{
		ID:       id.String(),
		ClientID: id.String(),
		OrgID:    orgID.String(),
		Type:     ResourceClient,
	}
}

// AppointmentObject builds the snapshot for an appointment.
func AppointmentObject(id uuid.UUID, ref AccessRef) Object {
	return Object{
		ID:          id.String(),
		ClientID:    ref.ClientID.String(),
		ClinicianID: ref.ClinicianID.String(),
		OrgID:       ref.OrganizationID.String(),
		Type:        ResourceAppointment,
	}
}

// ClinicalNoteObject builds the snapshot for a clinical note.
func ClinicalNoteObject(id uuid.UUID, ref AccessRef) Object {
	return Object{
		ID:          id.String(),
		ClientID:    ref.ClientID.String(),
		ClinicianID: ref.ClinicianID.String(),
		OrgID:       ref.OrganizationID.String(),
		Type:        ResourceClinicalNote,
	}
}

// BillingObject builds the snapshot for a billing record tied to a client.
func BillingObject(id, clientID, orgID uuid.UUID) Object {
	return Object{
		ID:       id.String(),
		ClientID: clientID.String(),
		OrgID:    orgID.String(),
		Type:     ResourceBillingRecord,
	}
}
