package nostr

import "strconv"

// Kind is an event kind. It is wider than the protocol allows so that filters carrying
// out-of-range kinds can be parsed and then rejected.
type Kind int64

// MaxKind is the first kind value that is not acceptable anywhere.
const MaxKind Kind = 1<<31 - 1

func (kind Kind) String() string { return "kind::" + kind.Name() + "<" + strconv.FormatInt(int64(kind), 10) + ">" }

func (kind Kind) Name() string {
	switch kind {
	case KindProfileMetadata:
		return "ProfileMetadata"
	case KindTextNote:
		return "TextNote"
	case KindFollowList:
		return "FollowList"
	case KindDeletion:
		return "Deletion"
	case KindRepost:
		return "Repost"
	case KindReaction:
		return "Reaction"
	case KindGenericRepost:
		return "GenericRepost"
	case KindPicture:
		return "Picture"
	case KindComment:
		return "Comment"
	case KindVoiceMessage:
		return "VoiceMessage"
	case KindVoiceReply:
		return "VoiceReply"
	case KindNameRequest:
		return "NameRequest"
	case KindReporting:
		return "Reporting"
	case KindLabel:
		return "Label"
	case KindNutZap:
		return "NutZap"
	case KindZapRequest:
		return "ZapRequest"
	case KindZap:
		return "Zap"
	case KindMuteList:
		return "MuteList"
	case KindBookmarkList:
		return "BookmarkList"
	case KindNostrConnect:
		return "NostrConnect"
	case KindBadgeDefinition:
		return "BadgeDefinition"
	case KindArticle:
		return "Article"
	case KindUserGrants:
		return "UserGrants"
	case KindEventGrants:
		return "EventGrants"
	case KindHandlerInformation:
		return "HandlerInformation"
	}
	return "unknown"
}

const (
	KindProfileMetadata    Kind = 0
	KindTextNote           Kind = 1
	KindFollowList         Kind = 3
	KindDeletion           Kind = 5
	KindRepost             Kind = 6
	KindReaction           Kind = 7
	KindGenericRepost      Kind = 16
	KindPicture            Kind = 20
	KindComment            Kind = 1111
	KindVoiceMessage       Kind = 1222
	KindVoiceReply         Kind = 1244
	KindNameRequest        Kind = 3036
	KindReporting          Kind = 1984
	KindLabel              Kind = 1985
	KindNutZap             Kind = 9321
	KindZapRequest         Kind = 9734
	KindZap                Kind = 9735
	KindMuteList           Kind = 10000
	KindBookmarkList       Kind = 10003
	KindNostrConnect       Kind = 24133
	KindBadgeDefinition    Kind = 30009
	KindArticle            Kind = 30023
	KindUserGrants         Kind = 30382
	KindEventGrants        Kind = 30383
	KindHandlerInformation Kind = 31990
)

// IsValid reports whether the kind fits the protocol range.
func (kind Kind) IsValid() bool {
	return kind >= 0 && kind < MaxKind
}

func (kind Kind) IsRegular() bool {
	return kind < 10000 && kind != 0 && kind != 3
}

func (kind Kind) IsReplaceable() bool {
	return kind == 0 || kind == 3 || (10000 <= kind && kind < 20000)
}

func (kind Kind) IsEphemeral() bool {
	return 20000 <= kind && kind < 30000
}

func (kind Kind) IsAddressable() bool {
	return 30000 <= kind && kind < 40000
}
