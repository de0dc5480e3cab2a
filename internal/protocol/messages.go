package protocol

import (
	"math"
	"time"

	"github.com/marmos91/idhost/internal/model"
	"github.com/marmos91/idhost/internal/wire"
)

// ---- Ping --------------------------------------------------------------

type PingRequest struct{}

func (m *PingRequest) Encode(w *wire.Writer) {}
func (m *PingRequest) Decode(r *wire.Reader) error { return nil }

type PingResponse struct{}

func (m *PingResponse) Encode(w *wire.Writer) {}
func (m *PingResponse) Decode(r *wire.Reader) error { return nil }

// ---- ListRoles -----------------------------------------------------------

type ListRolesRequest struct{}

func (m *ListRolesRequest) Encode(w *wire.Writer) {}
func (m *ListRolesRequest) Decode(r *wire.Reader) error { return nil }

type ListRolesResponse struct {
	Roles []model.Role
}

func (m *ListRolesResponse) Encode(w *wire.Writer) {
	w.PutList(len(m.Roles), func(w *wire.Writer, i int) {
		w.PutString(string(m.Roles[i]))
	})
}

func (m *ListRolesResponse) Decode(r *wire.Reader) error {
	_, err := r.GetList(func(r *wire.Reader, i int) error {
		v, err := r.GetString()
		if err != nil {
			return err
		}
		m.Roles = append(m.Roles, model.Role(v))
		return nil
	})
	return err
}

// ---- GetIdentityInformation ----------------------------------------------

type GetIdentityInformationRequest struct {
	IdentityID string
}

func (m *GetIdentityInformationRequest) Encode(w *wire.Writer) { w.PutString(m.IdentityID) }
func (m *GetIdentityInformationRequest) Decode(r *wire.Reader) error {
	v, err := r.GetString()
	m.IdentityID = v
	return err
}

type GetIdentityInformationResponse struct {
	IsHosted            bool
	IsOnline            bool
	Name                string
	Type                string
	HasLocation         bool
	Latitude            float64
	Longitude           float64
	ExtraData           string
	ProfileImageToken   string
	ThumbnailImageToken string
	AppServices         []string
	HomeNodeID          string
}

func (m *GetIdentityInformationResponse) Encode(w *wire.Writer) {
	w.PutBool(m.IsHosted)
	w.PutBool(m.IsOnline)
	w.PutString(m.Name)
	w.PutString(m.Type)
	w.PutBool(m.HasLocation)
	w.PutUint64(floatBits(m.Latitude))
	w.PutUint64(floatBits(m.Longitude))
	w.PutString(m.ExtraData)
	w.PutString(m.ProfileImageToken)
	w.PutString(m.ThumbnailImageToken)
	w.PutList(len(m.AppServices), func(w *wire.Writer, i int) { w.PutString(m.AppServices[i]) })
	w.PutString(m.HomeNodeID)
}

func (m *GetIdentityInformationResponse) Decode(r *wire.Reader) error {
	var err error
	if m.IsHosted, err = r.GetBool(); err != nil {
		return err
	}
	if m.IsOnline, err = r.GetBool(); err != nil {
		return err
	}
	if m.Name, err = r.GetString(); err != nil {
		return err
	}
	if m.Type, err = r.GetString(); err != nil {
		return err
	}
	if m.HasLocation, err = r.GetBool(); err != nil {
		return err
	}
	lat, err := r.GetUint64()
	if err != nil {
		return err
	}
	m.Latitude = bitsFloat(lat)
	lon, err := r.GetUint64()
	if err != nil {
		return err
	}
	m.Longitude = bitsFloat(lon)
	if m.ExtraData, err = r.GetString(); err != nil {
		return err
	}
	if m.ProfileImageToken, err = r.GetString(); err != nil {
		return err
	}
	if m.ThumbnailImageToken, err = r.GetString(); err != nil {
		return err
	}
	if _, err := r.GetList(func(r *wire.Reader, i int) error {
		v, err := r.GetString()
		if err != nil {
			return err
		}
		m.AppServices = append(m.AppServices, v)
		return nil
	}); err != nil {
		return err
	}
	if m.HomeNodeID, err = r.GetString(); err != nil {
		return err
	}
	return nil
}

// ---- ProfileStats ----------------------------------------------------------

type ProfileStatsRequest struct{}

func (m *ProfileStatsRequest) Encode(w *wire.Writer) {}
func (m *ProfileStatsRequest) Decode(r *wire.Reader) error { return nil }

type ProfileStatsResponse struct {
	HostedCount uint32
	OnlineCount uint32
}

func (m *ProfileStatsResponse) Encode(w *wire.Writer) {
	w.PutUint32(m.HostedCount)
	w.PutUint32(m.OnlineCount)
}

func (m *ProfileStatsResponse) Decode(r *wire.Reader) error {
	var err error
	if m.HostedCount, err = r.GetUint32(); err != nil {
		return err
	}
	if m.OnlineCount, err = r.GetUint32(); err != nil {
		return err
	}
	return nil
}

// ---- GetIdentityRelationships ----------------------------------------------

type GetIdentityRelationshipsRequest struct {
	IdentityID string
}

func (m *GetIdentityRelationshipsRequest) Encode(w *wire.Writer) { w.PutString(m.IdentityID) }
func (m *GetIdentityRelationshipsRequest) Decode(r *wire.Reader) error {
	v, err := r.GetString()
	m.IdentityID = v
	return err
}

type RelationInfo struct {
	ApplicationID string
	CardID        string
	Type          string
	ValidFrom     time.Time
	ValidTo       time.Time
}

func (m *RelationInfo) encode(w *wire.Writer) {
	w.PutString(m.ApplicationID)
	w.PutString(m.CardID)
	w.PutString(m.Type)
	w.PutUint64(uint64(m.ValidFrom.Unix()))
	w.PutUint64(uint64(m.ValidTo.Unix()))
}

func (m *RelationInfo) decode(r *wire.Reader) error {
	var err error
	if m.ApplicationID, err = r.GetString(); err != nil {
		return err
	}
	if m.CardID, err = r.GetString(); err != nil {
		return err
	}
	if m.Type, err = r.GetString(); err != nil {
		return err
	}
	from, err := r.GetUint64()
	if err != nil {
		return err
	}
	m.ValidFrom = time.Unix(int64(from), 0).UTC()
	to, err := r.GetUint64()
	if err != nil {
		return err
	}
	m.ValidTo = time.Unix(int64(to), 0).UTC()
	return nil
}

type GetIdentityRelationshipsResponse struct {
	Relations []RelationInfo
}

func (m *GetIdentityRelationshipsResponse) Encode(w *wire.Writer) {
	w.PutList(len(m.Relations), func(w *wire.Writer, i int) { m.Relations[i].encode(w) })
}

func (m *GetIdentityRelationshipsResponse) Decode(r *wire.Reader) error {
	_, err := r.GetList(func(r *wire.Reader, i int) error {
		var rel RelationInfo
		if err := rel.decode(r); err != nil {
			return err
		}
		m.Relations = append(m.Relations, rel)
		return nil
	})
	return err
}

// ---- AddRelatedIdentity / RemoveRelatedIdentity -----------------------------

type AddRelatedIdentityRequest struct {
	ApplicationID      string
	CardID             string
	IssuerPublicKey    []byte
	IssuerSignature    []byte
	RecipientPublicKey []byte
	RecipientSignature []byte
	Type               string
	ValidFrom          time.Time
	ValidTo            time.Time
}

func (m *AddRelatedIdentityRequest) Encode(w *wire.Writer) {
	w.PutString(m.ApplicationID)
	w.PutString(m.CardID)
	w.PutBytes(m.IssuerPublicKey)
	w.PutBytes(m.IssuerSignature)
	w.PutBytes(m.RecipientPublicKey)
	w.PutBytes(m.RecipientSignature)
	w.PutString(m.Type)
	w.PutUint64(uint64(m.ValidFrom.Unix()))
	w.PutUint64(uint64(m.ValidTo.Unix()))
}

func (m *AddRelatedIdentityRequest) Decode(r *wire.Reader) error {
	var err error
	if m.ApplicationID, err = r.GetString(); err != nil {
		return err
	}
	if m.CardID, err = r.GetString(); err != nil {
		return err
	}
	if m.IssuerPublicKey, err = r.GetBytes(); err != nil {
		return err
	}
	if m.IssuerSignature, err = r.GetBytes(); err != nil {
		return err
	}
	if m.RecipientPublicKey, err = r.GetBytes(); err != nil {
		return err
	}
	if m.RecipientSignature, err = r.GetBytes(); err != nil {
		return err
	}
	if m.Type, err = r.GetString(); err != nil {
		return err
	}
	from, err := r.GetUint64()
	if err != nil {
		return err
	}
	m.ValidFrom = time.Unix(int64(from), 0).UTC()
	to, err := r.GetUint64()
	if err != nil {
		return err
	}
	m.ValidTo = time.Unix(int64(to), 0).UTC()
	return nil
}

type AddRelatedIdentityResponse struct{}

func (m *AddRelatedIdentityResponse) Encode(w *wire.Writer)      {}
func (m *AddRelatedIdentityResponse) Decode(r *wire.Reader) error { return nil }

type RemoveRelatedIdentityRequest struct {
	ApplicationID string
}

func (m *RemoveRelatedIdentityRequest) Encode(w *wire.Writer) { w.PutString(m.ApplicationID) }
func (m *RemoveRelatedIdentityRequest) Decode(r *wire.Reader) error {
	v, err := r.GetString()
	m.ApplicationID = v
	return err
}

type RemoveRelatedIdentityResponse struct{}

func (m *RemoveRelatedIdentityResponse) Encode(w *wire.Writer)      {}
func (m *RemoveRelatedIdentityResponse) Decode(r *wire.Reader) error { return nil }

// ---- StartConversation ------------------------------------------------------

type StartConversationRequest struct {
	Versions        []model.Version
	PublicKey       []byte
	ClientChallenge []byte
}

func (m *StartConversationRequest) Encode(w *wire.Writer) {
	w.PutList(len(m.Versions), func(w *wire.Writer, i int) {
		v := m.Versions[i]
		w.PutUint8(v.Major)
		w.PutUint8(v.Minor)
		w.PutUint8(v.Patch)
	})
	w.PutBytes(m.PublicKey)
	w.PutBytes(m.ClientChallenge)
}

func (m *StartConversationRequest) Decode(r *wire.Reader) error {
	if _, err := r.GetList(func(r *wire.Reader, i int) error {
		major, err := r.GetUint8()
		if err != nil {
			return err
		}
		minor, err := r.GetUint8()
		if err != nil {
			return err
		}
		patch, err := r.GetUint8()
		if err != nil {
			return err
		}
		m.Versions = append(m.Versions, model.Version{Major: major, Minor: minor, Patch: patch})
		return nil
	}); err != nil {
		return err
	}
	var err error
	if m.PublicKey, err = r.GetBytes(); err != nil {
		return err
	}
	if m.ClientChallenge, err = r.GetBytes(); err != nil {
		return err
	}
	return nil
}

type StartConversationResponse struct {
	ServerPublicKey  []byte
	ServerChallenge  []byte
	SelectedVersion  model.Version
}

func (m *StartConversationResponse) Encode(w *wire.Writer) {
	w.PutBytes(m.ServerPublicKey)
	w.PutBytes(m.ServerChallenge)
	w.PutUint8(m.SelectedVersion.Major)
	w.PutUint8(m.SelectedVersion.Minor)
	w.PutUint8(m.SelectedVersion.Patch)
}

func (m *StartConversationResponse) Decode(r *wire.Reader) error {
	var err error
	if m.ServerPublicKey, err = r.GetBytes(); err != nil {
		return err
	}
	if m.ServerChallenge, err = r.GetBytes(); err != nil {
		return err
	}
	major, err := r.GetUint8()
	if err != nil {
		return err
	}
	minor, err := r.GetUint8()
	if err != nil {
		return err
	}
	patch, err := r.GetUint8()
	if err != nil {
		return err
	}
	m.SelectedVersion = model.Version{Major: major, Minor: minor, Patch: patch}
	return nil
}

// ---- CheckIn -----------------------------------------------------------------

type CheckInRequest struct {
	Challenge []byte
	Signature []byte
}

func (m *CheckInRequest) Encode(w *wire.Writer) {
	w.PutBytes(m.Challenge)
	w.PutBytes(m.Signature)
}

func (m *CheckInRequest) Decode(r *wire.Reader) error {
	var err error
	if m.Challenge, err = r.GetBytes(); err != nil {
		return err
	}
	if m.Signature, err = r.GetBytes(); err != nil {
		return err
	}
	return nil
}

type CheckInResponse struct{}

func (m *CheckInResponse) Encode(w *wire.Writer)      {}
func (m *CheckInResponse) Decode(r *wire.Reader) error { return nil }

// ---- VerifyIdentity ------------------------------------------------------------

type VerifyIdentityRequest struct {
	IdentityID string
	Signature  []byte
}

func (m *VerifyIdentityRequest) Encode(w *wire.Writer) {
	w.PutString(m.IdentityID)
	w.PutBytes(m.Signature)
}

func (m *VerifyIdentityRequest) Decode(r *wire.Reader) error {
	var err error
	if m.IdentityID, err = r.GetString(); err != nil {
		return err
	}
	if m.Signature, err = r.GetBytes(); err != nil {
		return err
	}
	return nil
}

type VerifyIdentityResponse struct{}

func (m *VerifyIdentityResponse) Encode(w *wire.Writer)      {}
func (m *VerifyIdentityResponse) Decode(r *wire.Reader) error { return nil }

// ---- HostingRegister ------------------------------------------------------------

type HostingRegisterRequest struct {
	ContractType string
	Signature    []byte
}

func (m *HostingRegisterRequest) Encode(w *wire.Writer) {
	w.PutString(m.ContractType)
	w.PutBytes(m.Signature)
}

func (m *HostingRegisterRequest) Decode(r *wire.Reader) error {
	var err error
	if m.ContractType, err = r.GetString(); err != nil {
		return err
	}
	if m.Signature, err = r.GetBytes(); err != nil {
		return err
	}
	return nil
}

type HostingRegisterResponse struct {
	IdentityID string
}

func (m *HostingRegisterResponse) Encode(w *wire.Writer) { w.PutString(m.IdentityID) }
func (m *HostingRegisterResponse) Decode(r *wire.Reader) error {
	v, err := r.GetString()
	m.IdentityID = v
	return err
}

// ---- UpdateProfile ------------------------------------------------------------

type UpdateProfileRequest struct {
	SetVersion  *model.Version
	SetName     *string
	SetLocation *model.Location
	SetExtra    *string
	SetImage    []byte
}

func (m *UpdateProfileRequest) Encode(w *wire.Writer) {
	w.PutOptional(m.SetVersion != nil, func(w *wire.Writer) {
		w.PutUint8(m.SetVersion.Major)
		w.PutUint8(m.SetVersion.Minor)
		w.PutUint8(m.SetVersion.Patch)
	})
	w.PutOptional(m.SetName != nil, func(w *wire.Writer) { w.PutString(*m.SetName) })
	w.PutOptional(m.SetLocation != nil, func(w *wire.Writer) {
		w.PutUint64(floatBits(m.SetLocation.Latitude))
		w.PutUint64(floatBits(m.SetLocation.Longitude))
	})
	w.PutOptional(m.SetExtra != nil, func(w *wire.Writer) { w.PutString(*m.SetExtra) })
	w.PutOptional(m.SetImage != nil, func(w *wire.Writer) { w.PutBytes(m.SetImage) })
}

func (m *UpdateProfileRequest) Decode(r *wire.Reader) error {
	if _, err := r.GetOptional(func(r *wire.Reader) error {
		major, err := r.GetUint8()
		if err != nil {
			return err
		}
		minor, err := r.GetUint8()
		if err != nil {
			return err
		}
		patch, err := r.GetUint8()
		if err != nil {
			return err
		}
		v := model.Version{Major: major, Minor: minor, Patch: patch}
		m.SetVersion = &v
		return nil
	}); err != nil {
		return err
	}
	if _, err := r.GetOptional(func(r *wire.Reader) error {
		v, err := r.GetString()
		if err != nil {
			return err
		}
		m.SetName = &v
		return nil
	}); err != nil {
		return err
	}
	if _, err := r.GetOptional(func(r *wire.Reader) error {
		lat, err := r.GetUint64()
		if err != nil {
			return err
		}
		lon, err := r.GetUint64()
		if err != nil {
			return err
		}
		m.SetLocation = &model.Location{Latitude: bitsFloat(lat), Longitude: bitsFloat(lon), Valid: true}
		return nil
	}); err != nil {
		return err
	}
	if _, err := r.GetOptional(func(r *wire.Reader) error {
		v, err := r.GetString()
		if err != nil {
			return err
		}
		m.SetExtra = &v
		return nil
	}); err != nil {
		return err
	}
	if _, err := r.GetOptional(func(r *wire.Reader) error {
		v, err := r.GetBytes()
		if err != nil {
			return err
		}
		m.SetImage = append([]byte(nil), v...)
		return nil
	}); err != nil {
		return err
	}
	return nil
}

type UpdateProfileResponse struct{}

func (m *UpdateProfileResponse) Encode(w *wire.Writer)      {}
func (m *UpdateProfileResponse) Decode(r *wire.Reader) error { return nil }

// ---- CancelHosting ------------------------------------------------------------

type CancelHostingRequest struct {
	RedirectTo string
}

func (m *CancelHostingRequest) Encode(w *wire.Writer) { w.PutString(m.RedirectTo) }
func (m *CancelHostingRequest) Decode(r *wire.Reader) error {
	v, err := r.GetString()
	m.RedirectTo = v
	return err
}

type CancelHostingResponse struct{}

func (m *CancelHostingResponse) Encode(w *wire.Writer)      {}
func (m *CancelHostingResponse) Decode(r *wire.Reader) error { return nil }

// ---- AppServiceAdd / AppServiceRemove ------------------------------------------

type AppServiceAddRequest struct {
	Name string
}

func (m *AppServiceAddRequest) Encode(w *wire.Writer) { w.PutString(m.Name) }
func (m *AppServiceAddRequest) Decode(r *wire.Reader) error {
	v, err := r.GetString()
	m.Name = v
	return err
}

type AppServiceAddResponse struct{}

func (m *AppServiceAddResponse) Encode(w *wire.Writer)      {}
func (m *AppServiceAddResponse) Decode(r *wire.Reader) error { return nil }

type AppServiceRemoveRequest struct {
	Name string
}

func (m *AppServiceRemoveRequest) Encode(w *wire.Writer) { w.PutString(m.Name) }
func (m *AppServiceRemoveRequest) Decode(r *wire.Reader) error {
	v, err := r.GetString()
	m.Name = v
	return err
}

type AppServiceRemoveResponse struct{}

func (m *AppServiceRemoveResponse) Encode(w *wire.Writer)      {}
func (m *AppServiceRemoveResponse) Decode(r *wire.Reader) error { return nil }

// ---- CallIdentityAppService ------------------------------------------------------

type CallIdentityAppServiceRequest struct {
	TargetIdentityID string
	ServiceName      string
}

func (m *CallIdentityAppServiceRequest) Encode(w *wire.Writer) {
	w.PutString(m.TargetIdentityID)
	w.PutString(m.ServiceName)
}

func (m *CallIdentityAppServiceRequest) Decode(r *wire.Reader) error {
	var err error
	if m.TargetIdentityID, err = r.GetString(); err != nil {
		return err
	}
	if m.ServiceName, err = r.GetString(); err != nil {
		return err
	}
	return nil
}

type CallIdentityAppServiceResponse struct {
	CallerToken string
}

func (m *CallIdentityAppServiceResponse) Encode(w *wire.Writer) { w.PutString(m.CallerToken) }
func (m *CallIdentityAppServiceResponse) Decode(r *wire.Reader) error {
	v, err := r.GetString()
	m.CallerToken = v
	return err
}

// ---- ApplicationServiceSendMessage ------------------------------------------------

type ApplicationServiceSendMessageRequest struct {
	Token   string
	Payload []byte
}

func (m *ApplicationServiceSendMessageRequest) Encode(w *wire.Writer) {
	w.PutString(m.Token)
	w.PutBytes(m.Payload)
}

func (m *ApplicationServiceSendMessageRequest) Decode(r *wire.Reader) error {
	var err error
	if m.Token, err = r.GetString(); err != nil {
		return err
	}
	if m.Payload, err = r.GetBytes(); err != nil {
		return err
	}
	return nil
}

type ApplicationServiceSendMessageResponse struct {
	Payload []byte
}

func (m *ApplicationServiceSendMessageResponse) Encode(w *wire.Writer) { w.PutBytes(m.Payload) }
func (m *ApplicationServiceSendMessageResponse) Decode(r *wire.Reader) error {
	v, err := r.GetBytes()
	m.Payload = v
	return err
}

// ---- ProfileSearch / ProfileSearchPart ------------------------------------------

type ProfileSearchRequest struct {
	NamePattern   string
	TypePattern   string
	HasLocation   bool
	Latitude      float64
	Longitude     float64
	RadiusMeters  float64
	ExtraRegex    string
	IncludeImages bool

	// MaxTotal bounds the number of matching rows the query considers,
	// before the response's own per-page cap is applied. A zero value
	// means "use the node's default page cap".
	MaxTotal uint32

	// HostedOnly restricts the search to identities hosted at this node,
	// skipping the neighbor-repository fan-out.
	HostedOnly bool
}

func (m *ProfileSearchRequest) Encode(w *wire.Writer) {
	w.PutString(m.NamePattern)
	w.PutString(m.TypePattern)
	w.PutBool(m.HasLocation)
	w.PutUint64(floatBits(m.Latitude))
	w.PutUint64(floatBits(m.Longitude))
	w.PutUint64(floatBits(m.RadiusMeters))
	w.PutString(m.ExtraRegex)
	w.PutBool(m.IncludeImages)
	w.PutUint32(m.MaxTotal)
	w.PutBool(m.HostedOnly)
}

func (m *ProfileSearchRequest) Decode(r *wire.Reader) error {
	var err error
	if m.NamePattern, err = r.GetString(); err != nil {
		return err
	}
	if m.TypePattern, err = r.GetString(); err != nil {
		return err
	}
	if m.HasLocation, err = r.GetBool(); err != nil {
		return err
	}
	lat, err := r.GetUint64()
	if err != nil {
		return err
	}
	m.Latitude = bitsFloat(lat)
	lon, err := r.GetUint64()
	if err != nil {
		return err
	}
	m.Longitude = bitsFloat(lon)
	rad, err := r.GetUint64()
	if err != nil {
		return err
	}
	m.RadiusMeters = bitsFloat(rad)
	if m.ExtraRegex, err = r.GetString(); err != nil {
		return err
	}
	if m.IncludeImages, err = r.GetBool(); err != nil {
		return err
	}
	if m.MaxTotal, err = r.GetUint32(); err != nil {
		return err
	}
	if m.HostedOnly, err = r.GetBool(); err != nil {
		return err
	}
	return nil
}

type ProfileSearchResultItem struct {
	IdentityID          string
	Name                string
	Type                string
	HasLocation         bool
	Latitude            float64
	Longitude           float64
	ExtraData           string
	ProfileImageToken   string
	ThumbnailImageToken string
	HomeNodeID          string
}

func (m *ProfileSearchResultItem) encode(w *wire.Writer) {
	w.PutString(m.IdentityID)
	w.PutString(m.Name)
	w.PutString(m.Type)
	w.PutBool(m.HasLocation)
	w.PutUint64(floatBits(m.Latitude))
	w.PutUint64(floatBits(m.Longitude))
	w.PutString(m.ExtraData)
	w.PutString(m.ProfileImageToken)
	w.PutString(m.ThumbnailImageToken)
	w.PutString(m.HomeNodeID)
}

func (m *ProfileSearchResultItem) decode(r *wire.Reader) error {
	var err error
	if m.IdentityID, err = r.GetString(); err != nil {
		return err
	}
	if m.Name, err = r.GetString(); err != nil {
		return err
	}
	if m.Type, err = r.GetString(); err != nil {
		return err
	}
	if m.HasLocation, err = r.GetBool(); err != nil {
		return err
	}
	lat, err := r.GetUint64()
	if err != nil {
		return err
	}
	m.Latitude = bitsFloat(lat)
	lon, err := r.GetUint64()
	if err != nil {
		return err
	}
	m.Longitude = bitsFloat(lon)
	if m.ExtraData, err = r.GetString(); err != nil {
		return err
	}
	if m.ProfileImageToken, err = r.GetString(); err != nil {
		return err
	}
	if m.ThumbnailImageToken, err = r.GetString(); err != nil {
		return err
	}
	if m.HomeNodeID, err = r.GetString(); err != nil {
		return err
	}
	return nil
}

type ProfileSearchResponse struct {
	Results  []ProfileSearchResultItem
	Overflow bool
}

func (m *ProfileSearchResponse) Encode(w *wire.Writer) {
	w.PutList(len(m.Results), func(w *wire.Writer, i int) { m.Results[i].encode(w) })
	w.PutBool(m.Overflow)
}

func (m *ProfileSearchResponse) Decode(r *wire.Reader) error {
	if _, err := r.GetList(func(r *wire.Reader, i int) error {
		var item ProfileSearchResultItem
		if err := item.decode(r); err != nil {
			return err
		}
		m.Results = append(m.Results, item)
		return nil
	}); err != nil {
		return err
	}
	v, err := r.GetBool()
	m.Overflow = v
	return err
}

type ProfileSearchPartRequest struct {
	Offset uint32
	Count  uint32
}

func (m *ProfileSearchPartRequest) Encode(w *wire.Writer) {
	w.PutUint32(m.Offset)
	w.PutUint32(m.Count)
}

func (m *ProfileSearchPartRequest) Decode(r *wire.Reader) error {
	var err error
	if m.Offset, err = r.GetUint32(); err != nil {
		return err
	}
	if m.Count, err = r.GetUint32(); err != nil {
		return err
	}
	return nil
}

type ProfileSearchPartResponse struct {
	Results []ProfileSearchResultItem
	More    bool
}

func (m *ProfileSearchPartResponse) Encode(w *wire.Writer) {
	w.PutList(len(m.Results), func(w *wire.Writer, i int) { m.Results[i].encode(w) })
	w.PutBool(m.More)
}

func (m *ProfileSearchPartResponse) Decode(r *wire.Reader) error {
	if _, err := r.GetList(func(r *wire.Reader, i int) error {
		var item ProfileSearchResultItem
		if err := item.decode(r); err != nil {
			return err
		}
		m.Results = append(m.Results, item)
		return nil
	}); err != nil {
		return err
	}
	v, err := r.GetBool()
	m.More = v
	return err
}

// ---- Node-initiated notifications --------------------------------------------

type IncomingCallNotification struct {
	CallerIdentityID string
	ServiceName      string
	CalleeToken      string
}

func (m *IncomingCallNotification) Encode(w *wire.Writer) {
	w.PutString(m.CallerIdentityID)
	w.PutString(m.ServiceName)
	w.PutString(m.CalleeToken)
}

func (m *IncomingCallNotification) Decode(r *wire.Reader) error {
	var err error
	if m.CallerIdentityID, err = r.GetString(); err != nil {
		return err
	}
	if m.ServiceName, err = r.GetString(); err != nil {
		return err
	}
	if m.CalleeToken, err = r.GetString(); err != nil {
		return err
	}
	return nil
}

type AppServiceReceiveMessageNotification struct {
	Token   string
	Payload []byte
}

func (m *AppServiceReceiveMessageNotification) Encode(w *wire.Writer) {
	w.PutString(m.Token)
	w.PutBytes(m.Payload)
}

func (m *AppServiceReceiveMessageNotification) Decode(r *wire.Reader) error {
	var err error
	if m.Token, err = r.GetString(); err != nil {
		return err
	}
	if m.Payload, err = r.GetBytes(); err != nil {
		return err
	}
	return nil
}

// floatBits/bitsFloat carry a float64 over the wire's integer primitives;
// the codec has no native float field, so coordinates and distances
// round-trip through their IEEE-754 bit pattern.
func floatBits(f float64) uint64 {
	return math.Float64bits(f)
}

func bitsFloat(b uint64) float64 {
	return math.Float64frombits(b)
}
