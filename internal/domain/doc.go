// Package domain models the GPS navigation core of the dispatch client: the
// operator's position, resolved destinations, turn-by-turn instructions and
// the spoken narration derived from them.
//
// # Coordinates
//
// All coordinates are WGS-84 decimal degrees. [Coordinate] stores them in
// latitude/longitude order; geometry libraries (orb, OSRM, GeoJSON) use
// longitude/latitude order and the conversion happens at the adapter edge via
// [Coordinate.Point] and [CoordinateFromPoint].
//
// # Instructions
//
// A routing service returns [RawInstruction] values:
//
//	{text: "Turn right onto Lundy's Lane", distance: 412.3, time: 41, type: "Right"}
//
// [Normalize] turns them into [NavigationInstruction] values:
//
//   - distances written in miles, feet or yards inside the text are rewritten
//     to kilomètres (one decimal) or mètres (integer):
//     1 mi = 1.60934 km, 1 ft = 0.3048 m, 1 yd = 0.9144 m.
//   - the structured distance is sanity-checked: a value below 100 on a route
//     longer than 1000 m is assumed to be miles and multiplied by 1609.
//   - English maneuver phrases are replaced by their French equivalents using
//     case-insensitive whole-phrase matching ("Turn right" -> "Tournez à droite").
//   - each instruction gets a zero-based sequence index equal to its position.
//
// Maneuver types are a closed set ([ManeuverType]). Routing-machine names that
// have no direct counterpart collapse to the nearest member: Head and Continue
// become Straight, DestinationReached becomes WaypointReached, anything unknown
// becomes Other.
//
// # Narration
//
// [UtteranceText] fills a per-maneuver French template with the distance in
// kilomètres rounded to one decimal. WaypointReached always yields the fixed
// arrival phrase. Types without a template read the instruction text followed
// by the distance.
//
// # Errors
//
// Every failure in this subsystem is recoverable. Callers branch on the
// sentinel errors ([ErrNoMatch], [ErrGeocodeFailure], [ErrRouteFailure],
// [ErrPositionUnavailable], [ErrSpeechUnavailable]) with errors.Is.
package domain
