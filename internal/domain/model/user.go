package model

// 認証は外部のIdPが行う。ここではJWTのroleだけを扱う。
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)
