package html

// dlasLogoB64 is the fixed DLAS top-bar logo, a small PNG embedded so the
// document stays self-contained.
const dlasLogoB64 = "iVBORw0KGgoAAAANSUhEUgAAABwAAAAcCAYAAACdz7SqAAAAZklEQVRIS2NkoBAwUqif" +
	"YdQAhtEwYBgNA1A+GE0HDKPpgGE0HTCMpgOG0XTAMJoOGEbTAcNoOmAYTQcMo+mAYTQd" +
	"MIymA4bRdMAwmg4YRtMBw2g6YBhNBwyj6YBhNB0wjKYDBgCS9Rwt0q6AFQAAAABJRU5E" +
	"rkJggg=="
