package models

type UserFlags uint64

const (
	UserFlagStaff UserFlags = 1 << iota
	UserFlagAdmin
	UserFlagVerified
	UserFlagEarlySupporter
)

const AllUserFlags = UserFlagStaff | UserFlagAdmin | UserFlagVerified | UserFlagEarlySupporter

const DefaultUserFlags = UserFlagEarlySupporter

func (f UserFlags) Has(f2 UserFlags) bool {
	return f&f2 == f2
}

type ChannelType int

const (
	ChannelTypeCategory ChannelType = 0
	ChannelTypeText     ChannelType = 1
)

func (t ChannelType) Valid() bool {
	return t == ChannelTypeCategory || t == ChannelTypeText
}

type MessageFlags uint64

const (
	MessageFlagWelcome MessageFlags = 1 << iota
)
