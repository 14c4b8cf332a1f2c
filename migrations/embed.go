package migrations

import "embed"

// ControlPlane - справочник компаний. Tenant - схема БД каждой компании.
//
//go:embed controlplane/*.sql
var ControlPlane embed.FS

//go:embed tenant/*.sql
var Tenant embed.FS
