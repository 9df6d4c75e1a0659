package database

import "github.com/mentalspace/ehr/ehrd/rbac"

func (c Client) RBACObject() rbac.Object {
	return rbac.ClientObject(c.ID, c.OrganizationID)
}

func (a Appointment) AccessRef() rbac.AccessRef {
	return rbac.AccessRef{
		ClientID:       a.ClientID,
		ClinicianID:    a.ClinicianID,
		OrganizationID: a.OrganizationID,
	}
}

func (a Appointment) RBACObject() rbac.Object {
	return rbac.AppointmentObject(a.ID, a.AccessRef())
}

func (n ClinicalNote) AccessRef() rbac.AccessRef {
	return rbac.AccessRef{
		ClientID:       n.ClientID,
		ClinicianID:    n.ClinicianID,
		OrganizationID: n.OrganizationID,
	}
}

func (n ClinicalNote) RBACObject() rbac.Object {
	return rbac.ClinicalNoteObject(n.ID, n.AccessRef())
}

func (b BillingRecord) RBACObject() rbac.Object {
	return rbac.BillingObject(b.ID, b.ClientID, b.OrganizationID)
}
